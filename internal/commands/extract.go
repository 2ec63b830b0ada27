package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newExtractCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <document>",
		Short: "Print the transactions found in a brokerage document as JSON",
		Long: `Sends the document to Gemini and prints the transactions it lists. The
output can be edited and passed to enrich. Requires GEMINI_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			defer cleanup()

			txs, err := a.extractDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{"transactions": txs})
		},
	}
}
