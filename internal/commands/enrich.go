package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/damon-houk/ptax-enricher/internal/application/service"
	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/db"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/export"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/extract"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/interrupt"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/prompt"
	"github.com/spf13/cobra"
)

// errInterrupted ends a run interrupted while no transaction was in flight
var errInterrupted = errors.New("interrupted")

// exitInterrupted is the conventional status of a process stopped by SIGINT
const exitInterrupted = 130

type enrichOptions struct {
	document        string
	output          string
	format          string
	year            int
	interactive     bool
	promptOnMissing bool
	lookback        int
	store           bool
}

func newEnrichCommand(root *rootOptions) *cobra.Command {
	opts := &enrichOptions{}

	cmd := &cobra.Command{
		Use:   "enrich [transactions.json]",
		Short: "Attach PTAX rates and BRL amounts to a batch of transactions",
		Long: `Reads transactions from a JSON file, or from a brokerage document with
--document, resolves the PTAX rate of every trade and acquisition date and
writes one row per transaction.

With --interactive, Ctrl+C while a transaction is resolving asks for its rates
by hand; Ctrl+C between transactions stops the run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.document == "" {
				return errors.New("a transactions file or --document is required")
			}
			if len(args) == 1 && opts.document != "" {
				return errors.New("use either a transactions file or --document, not both")
			}
			switch opts.format {
			case "csv", "bastter", "json":
			default:
				return fmt.Errorf("unknown format %q (csv, bastter or json)", opts.format)
			}

			a, cleanup, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			defer cleanup()

			if opts.lookback != 0 {
				a.cfg.Resolver.LookbackDays = opts.lookback
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}

			var txs []entity.Transaction
			if opts.document != "" {
				txs, err = a.extractDocument(cmd.Context(), opts.document)
			} else {
				txs, err = readTransactions(args[0])
			}
			if err != nil {
				return err
			}

			return a.enrich(cmd, opts, txs)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.document, "document", "", "brokerage document (PDF) to extract transactions from")
	flags.StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	flags.StringVar(&opts.format, "format", "csv", "output format: csv, bastter or json")
	flags.IntVar(&opts.year, "year", 0, "with --format bastter, keep only trades of this year")
	flags.BoolVar(&opts.interactive, "interactive", false, "allow manual rates after Ctrl+C")
	flags.BoolVar(&opts.promptOnMissing, "prompt-on-missing", false, "with --interactive, also ask when no quote exists in the lookback window")
	flags.IntVar(&opts.lookback, "lookback", 0, "days to look back for a published quote (overrides config)")
	flags.BoolVar(&opts.store, "store", false, "store the result in the local database")

	return cmd
}

func (a *app) enrich(cmd *cobra.Command, opts *enrichOptions, txs []entity.Transaction) error {
	if len(txs) == 0 {
		return errors.New("no transactions to enrich")
	}

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)

	var (
		prompter domain.ManualRatePrompter
		router   *interrupt.Router
	)
	if opts.interactive {
		prompter = prompt.NewConsolePrompter(cmd.ErrOrStderr(), cmd.InOrStdin())
		router = interrupt.NewRouter(func() { cancel(errInterrupted) })

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		defer signal.Stop(signals)
		go router.Listen(ctx, signals)
	}

	coordinator := service.NewBatchCoordinator(a.rateSource(), service.CoordinatorOptions{
		Resolver: a.resolverConfig(),
		Enricher: service.EnricherConfig{ManualOnUnavailable: opts.promptOnMissing},
		Prompter: prompter,
		Router:   router,
		Logger:   a.log,
	})

	var runner service.BatchRunner = coordinator
	if opts.store {
		badgerDB, err := db.Open(a.cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer badgerDB.Close()
		runner = storingRunner{service.NewBatchService(coordinator, db.NewBadgerBatchRepository(badgerDB), a.log)}
	}

	result, err := runner.Run(ctx, txs)
	if errors.Is(context.Cause(ctx), errInterrupted) {
		return &ExitError{Code: exitInterrupted, Err: errInterrupted}
	}
	if err != nil {
		return err
	}

	if err := writeResult(cmd.OutOrStdout(), opts, result); err != nil {
		return err
	}

	printSummary(cmd.ErrOrStderr(), result)
	return nil
}

// storingRunner runs a batch through the batch service so the result is persisted
type storingRunner struct {
	service *service.BatchService
}

func (r storingRunner) Run(ctx context.Context, txs []entity.Transaction) (*entity.BatchResult, error) {
	return r.service.Submit(ctx, txs)
}

func writeResult(stdout io.Writer, opts *enrichOptions, result *entity.BatchResult) error {
	var buf bytes.Buffer

	switch opts.format {
	case "bastter":
		if err := export.WriteBastterCSV(&buf, export.BastterRows(result, opts.year)); err != nil {
			return err
		}
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	default:
		if err := export.WriteCSV(&buf, export.Rows(result)); err != nil {
			return err
		}
	}

	if opts.output == "" || opts.output == "-" {
		_, err := buf.WriteTo(stdout)
		return err
	}
	if err := os.WriteFile(opts.output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.output, err)
	}
	return nil
}

func printSummary(w io.Writer, result *entity.BatchResult) {
	c := result.Counts
	fmt.Fprintf(w, "batch %s: %d transactions: %d enriched, %d manually overridden, %d failed\n",
		result.ID, c.Total(), c.Enriched, c.ManuallyOverridden, c.Failed)

	for _, o := range result.Outcomes {
		if o.Status != entity.StatusFailed {
			continue
		}
		date := "-"
		if !o.Transaction.TradeDate.IsZero() {
			date = o.Transaction.TradeDate.Format(entity.DateFormat)
		}
		fmt.Fprintf(w, "  #%d %s %s: %s\n", o.Index, o.Transaction.Ticker, date, o.Reason)
	}
}

// readTransactions accepts a JSON array of transactions or an object with a
// "transactions" array
func readTransactions(path string) ([]entity.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var txs []entity.Transaction
		if err := json.Unmarshal(data, &txs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return txs, nil
	}

	var wrapped struct {
		Transactions []entity.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wrapped.Transactions, nil
}

func (a *app) extractDocument(ctx context.Context, path string) ([]entity.Transaction, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	extractor, err := extract.NewGeminiExtractor(ctx, a.cfg.Gemini.APIKey, a.cfg.Gemini.Model, a.log)
	if err != nil {
		return nil, err
	}

	return extractor.Extract(ctx, document, documentMIMEType(path, document))
}

func documentMIMEType(path string, document []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(document)
}
