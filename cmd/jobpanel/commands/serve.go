package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/jobpanel/config"
	"github.com/ncobase/jobpanel/job"
	"github.com/ncobase/jobpanel/job/data"
	"github.com/ncobase/jobpanel/job/data/cache"
	jobRepo "github.com/ncobase/jobpanel/job/data/repository"
	"github.com/ncobase/jobpanel/job/handler"
	"github.com/ncobase/jobpanel/logging/logger"
	"github.com/ncobase/jobpanel/logging/observes"
	"github.com/ncobase/jobpanel/version"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the job service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logCleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCleanup()
	log := logger.StdLogger()

	if cfg.Sentry.Dsn != "" {
		if err := observes.NewSentry(&observes.SentryOptions{
			Dsn:         cfg.Sentry.Dsn,
			Name:        cfg.AppName,
			Release:     cfg.Sentry.Release,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		log.AddHook(observes.NewSentryHook(nil))
		defer observes.FlushSentry()
	}

	if cfg.Tracing.Endpoint != "" {
		info := version.GetVersionInfo()
		shutdown, err := observes.NewTracer(ctx, &observes.TracerOption{
			URL:          cfg.Tracing.Endpoint,
			Name:         cfg.AppName,
			Version:      info.Version,
			Revision:     info.Revision,
			Environment:  cfg.Environment,
			SamplingRate: cfg.Tracing.SamplingRate,
			BatchTimeout: cfg.Tracing.BatchTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to init tracer: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error(shutdownCtx, "Failed to flush traces", "error", err)
			}
		}()
		log.Info(ctx, "Tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	d, err := data.New(ctx, cfg.Data, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Error(context.Background(), "Failed to close data connections", "error", err)
		}
	}()

	repo, err := jobRepo.NewJobRepository(ctx, d.DB())
	if err != nil {
		return fmt.Errorf("failed to initialize job repository: %w", err)
	}

	var statusCache *cache.StatusCache
	if rc := d.Redis(); rc != nil {
		statusCache = cache.NewStatusCache(rc, cfg.Data.Redis.StatusTTL)
	}

	mgr, jobCleanup, err := job.NewManager(ctx, cfg.Jobs, repo, statusCache, log)
	if err != nil {
		return fmt.Errorf("failed to create job manager: %w", err)
	}
	defer jobCleanup()

	switch cfg.RunMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.RunMode)
	}
	router := handler.NewRouter(handler.NewJobHandler(mgr, log), log)

	if cfg.Viper != nil && cfg.Viper.ConfigFileUsed() != "" {
		cfg.Watch(func(next *config.Config) {
			log.SetLevelFromInt(next.Logger.Level)
			log.Info(context.Background(), "Configuration reloaded", "log_level", next.Logger.Level)
		}, func(err error) {
			log.Error(context.Background(), "Configuration reload rejected", "error", err)
		})
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "Starting server", "addr", server.Addr, "workers", cfg.Jobs.MaxWorkers)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Server shutdown failed", "error", err)
	}
	log.Info(shutdownCtx, "Server exited")
	return nil
}
