package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kass/go-aqi-viz/internal/api"
	"github.com/kass/go-aqi-viz/internal/config"
	"github.com/kass/go-aqi-viz/internal/metrics"
	"github.com/kass/go-aqi-viz/pkg/archive"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serve the air-quality and visualization endpoints until SIGINT or SIGTERM.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		logger.Info("archiving readings", "driver", store.Driver())
	}

	svc, err := buildServices(cfg, store, logger)
	if err != nil {
		return err
	}

	handler := api.New(svc, api.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		NearbyLimit:    cfg.Server.NearbyLimit,
		Logger:         logger,
		Metrics:        metrics.NewSet(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if configFile != "" {
		g.Go(func() error {
			return config.Watch(gctx, configFile, func(next *config.Config) {
				svc, err := buildServices(next, store, logger)
				if err != nil {
					logger.Error("config: rejected reload", "error", err)
					return
				}
				handler.Swap(svc)
				logger.Info("services reloaded",
					"cache_ttl", next.Provider.CacheTTL,
					"selector_seed", next.Selector.Seed,
				)
			})
		})
	}

	return g.Wait()
}

// buildServices wires the request pipeline from cfg. The archive store is
// shared across reloads.
func buildServices(cfg *config.Config, store *archive.Store, logger *slog.Logger) (api.Services, error) {
	selector, err := newSelector(cfg)
	if err != nil {
		return api.Services{}, err
	}
	return api.Services{
		Fetcher:   newFetcher(cfg, store, logger),
		Extractor: newExtractor(cfg),
		Selector:  selector,
	}, nil
}
