// Package commands implements the ptax-enricher command line
package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/application/service"
	"github.com/damon-houk/ptax-enricher/internal/config"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/api"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/trace"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

// ExitError asks main to exit with Code instead of 1
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "ptax-enricher",
		Short:   "Attach official PTAX BRL/USD rates to brokerage transactions",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newEnrichCommand(opts),
		newQuoteCommand(opts),
		newExtractCommand(opts),
	)

	return rootCmd
}

// app is the shared runtime of every subcommand
type app struct {
	cfg *config.Config
	log logger.Logger
}

// newApp loads configuration and starts logging and tracing. The returned
// function flushes both.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	zl := logger.NewJSONLogger(cmd.ErrOrStderr(), level)
	logger.SetDefaultLogger(zl)

	if err := trace.Init(cfg.TracingEnabled, cmd.ErrOrStderr()); err != nil {
		return nil, nil, fmt.Errorf("failed to start tracing: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(ctx); err != nil {
			zl.Warn("Failed to flush traces", map[string]interface{}{"error": err.Error()})
		}
		_ = zl.Sync()
	}

	return &app{cfg: cfg, log: zl}, cleanup, nil
}

func (a *app) rateSource() *api.PTAXClient {
	return api.NewPTAXClient(api.ClientOptions{
		BaseURL:           a.cfg.PTAX.BaseURL,
		HTTPClient:        &http.Client{Timeout: a.cfg.PTAX.Timeout},
		RequestsPerSecond: a.cfg.PTAX.RequestsPerSecond,
		Burst:             a.cfg.PTAX.Burst,
		Logger:            a.log,
	})
}

func (a *app) resolverConfig() service.ResolverConfig {
	return service.ResolverConfig{
		LookbackDays: a.cfg.Resolver.LookbackDays,
		MaxAttempts:  a.cfg.Resolver.MaxAttempts,
		RetryBackoff: a.cfg.Resolver.RetryBackoff,
	}
}
