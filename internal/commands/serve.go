package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/application/service"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/db"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/extract"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/handler"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the enrichment API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := newApp(cmd, root)
			if err != nil {
				return err
			}
			defer cleanup()

			if port != "" {
				a.cfg.Server.Port = port
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	badgerDB, err := db.Open(a.cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			a.log.Error("Error closing BadgerDB", map[string]interface{}{"error": err.Error()})
		}
	}()

	source := a.rateSource()
	coordinator := service.NewBatchCoordinator(source, service.CoordinatorOptions{
		Resolver: a.resolverConfig(),
		Logger:   a.log,
	})
	batchService := service.NewBatchService(coordinator, db.NewBadgerBatchRepository(badgerDB), a.log)
	quoteService := service.NewQuoteService(source, a.resolverConfig(), a.log)

	var extractor domain.DocumentExtractor
	if a.cfg.Gemini.APIKey != "" {
		gemini, err := extract.NewGeminiExtractor(ctx, a.cfg.Gemini.APIKey, a.cfg.Gemini.Model, a.log)
		if err != nil {
			return err
		}
		extractor = gemini
	}

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(a.log))
	if a.cfg.Server.RequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(a.cfg.Server.RequestsPerSecond), max(a.cfg.Server.Burst, 1))
		router.Use(middleware.RateLimitMiddleware(limiter, a.log))
	}
	handler.NewBatchHandler(batchService, extractor, a.log).RegisterRoutes(router)
	handler.NewQuoteHandler(quoteService, a.log).RegisterRoutes(router)

	server := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Server listening", map[string]interface{}{
			"addr":       server.Addr,
			"extraction": extractor != nil,
		})
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
