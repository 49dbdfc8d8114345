package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/afroash/solardash/internal/loader"
	"github.com/afroash/solardash/internal/models"
	"github.com/afroash/solardash/internal/server"
	"github.com/afroash/solardash/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	Long: `Serves the dashboard page, the JSON API and the Excel report.
The readings table is loaded on the first request and kept in memory until
POST /api/cache/reset is called or, with data.watch enabled, the file changes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("config", cfg.String()).
		Msg("Starting Solar Efficiency Dashboard")

	source, store, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			store.Close()
			logger.Info().Msg("SQLiteStore closed")
		}()
	}

	cache := loader.NewCache(source, logger)
	hub := server.NewHub(models.HelloMessage{Version: version, Source: source.Describe()}, logger, cfg.Server.AllowedOrigins...)
	defer hub.Close()

	threshold := cfg.Dashboard.LowEfficiencyThreshold
	var api *server.APIHandler
	if store != nil {
		api = server.NewAPIHandlerWithHistory(cache, store, hub, threshold, cfg.Server.AdminToken, logger)
	} else {
		api = server.NewAPIHandler(cache, hub, threshold, cfg.Server.AdminToken, logger)
	}

	page, err := server.NewPageHandler(cache, server.PageSettings{
		Title:    cfg.Dashboard.Title,
		Subtitle: cfg.Dashboard.Subtitle,
		Footer:   cfg.Dashboard.Footer,
	}, threshold, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewMux(server.Routes{
			Version: version,
			Page:    page,
			API:     api,
			Hub:     hub,
			Logger:  logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var fw *watcher.FileWatcher
	if cfg.Data.Watch {
		fw, err = watcher.New(cfg.Data.Path, cfg.Data.WatchDebounce, func() {
			api.Reload("file changed")
		}, logger)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the cache so a broken data file shows up in the logs right away.
	// A failed load is not kept, the first request retries it.
	if _, err := cache.Get(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial load failed, dashboard will show an error until the data is fixed")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if fw != nil {
		g.Go(func() error {
			return fw.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return err
	}

	logger.Info().Msg("Server stopped")
	return nil
}
