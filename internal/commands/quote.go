package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/application/service"
	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/export"
	"github.com/spf13/cobra"
)

type quoteOptions struct {
	date   string
	from   string
	to     string
	side   string
	output string
}

func newQuoteCommand(root *rootOptions) *cobra.Command {
	opts := &quoteOptions{}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Look up PTAX quotes for a date or a period",
		Example: `  ptax-enricher quote --date 2023-05-13 --side BUY_RATE
  ptax-enricher quote --from 01/05/2023 --to 31/05/2023 -o may.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			single := opts.date != ""
			period := opts.from != "" || opts.to != ""
			if single == period {
				return errors.New("use either --date or --from and --to")
			}

			a, cleanup, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := service.NewQuoteService(a.rateSource(), a.resolverConfig(), a.log)

			if single {
				date, err := parseCLIDate(opts.date)
				if err != nil {
					return err
				}
				side, err := entity.ParseSide(strings.ToUpper(opts.side))
				if err != nil {
					return err
				}

				quote, err := svc.Quote(cmd.Context(), date, side)
				if err != nil {
					return err
				}

				line := fmt.Sprintf("%s %s %s", quote.RequestedDate.Format(entity.DateFormat), quote.Side, quote.Rate)
				if quote.FellBack() {
					line += fmt.Sprintf(" (published %s)", quote.ResolvedDate.Format(entity.DateFormat))
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return nil
			}

			if opts.from == "" || opts.to == "" {
				return errors.New("--from and --to are both required for a period")
			}
			start, err := parseCLIDate(opts.from)
			if err != nil {
				return err
			}
			end, err := parseCLIDate(opts.to)
			if err != nil {
				return err
			}

			quotes, err := svc.Period(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.WriteQuotesCSV(&buf, quotes); err != nil {
				return err
			}
			if opts.output == "" || opts.output == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(opts.output, buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", opts.output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d quotes saved to %s\n", len(quotes), opts.output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.date, "date", "", "date to resolve (YYYY-MM-DD or DD/MM/YYYY)")
	flags.StringVar(&opts.from, "from", "", "first day of the period")
	flags.StringVar(&opts.to, "to", "", "last day of the period")
	flags.StringVar(&opts.side, "side", string(entity.SideSellRate), "BUY_RATE or SELL_RATE, with --date")
	flags.StringVarP(&opts.output, "output", "o", "-", "CSV file for a period, - for stdout")

	return cmd
}

// parseCLIDate accepts ISO dates and the Brazilian day-first form
func parseCLIDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{entity.DateFormat, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or DD/MM/YYYY", s)
}
