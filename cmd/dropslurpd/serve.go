package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chtzvt/dropslurp/cmd/dropslurpd/config"
	"github.com/chtzvt/dropslurp/internal/api"
	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/pool"
	"github.com/chtzvt/dropslurp/internal/processor"
	"github.com/chtzvt/dropslurp/internal/router"
	"github.com/chtzvt/dropslurp/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the inbox and process entries until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := loadRuntime()
		if err != nil {
			return err
		}
		defer closeLog(closer)
		ctx, cancel := cmdContext()
		defer cancel()
		return runServe(ctx, cfg, logger)
	},
}

// buildEngine wires storage folders, processor, router and worker pool into an
// engine for cfg. The returned storage service backs the upload API.
func buildEngine(cfg *config.Config, logger zerolog.Logger) (*engine.Engine, *storage.Service, error) {
	files := storage.New(cfg.Storage.Root, logging.Component(logger, "storage"))
	if err := files.Init(cfg.Folders()...); err != nil {
		return nil, nil, err
	}

	store, err := openSecrets(cfg.Secrets)
	if err != nil {
		return nil, nil, err
	}
	proc, err := processor.New(cfg.Processor.Name, cfg.Processor.ProcessorOptions(), processor.Deps{
		Secrets:    store,
		Logger:     logging.Component(logger, "processor"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	})
	if err != nil {
		return nil, nil, err
	}
	flt, err := buildFilter(cfg.Watch, proc)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(engine.Config{
		Root:             cfg.Watch.Dir,
		Filter:           flt,
		Processor:        proc,
		Completion:       router.New(cfg.Routing, logging.Component(logger, "router")),
		Pool:             pool.NewWorkerPool(cfg.Watch.Workers, cfg.Watch.QueueSize, logging.Component(logger, "pool")),
		Logger:           logging.Component(logger, "engine"),
		ScanInterval:     cfg.Watch.ScanInterval,
		ErrorBackoff:     cfg.Watch.ErrorBackoff,
		RetryDelay:       cfg.Watch.RetryDelay,
		PurgeAge:         cfg.Watch.PurgeAge,
		SkipStartupPurge: !cfg.Watch.PurgeBeforeStart,
		Active:           cfg.Watch.Active(),
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, files, nil
}

func runServe(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	eng, files, err := buildEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("boot failure: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()
	logger.Info().
		Str("dir", cfg.Watch.Dir).
		Str("processor", cfg.Processor.Name).
		Int("workers", cfg.Watch.Workers).
		Msg("dropslurpd started")

	apiErr := make(chan error, 1)
	if cfg.Api.Enabled {
		srv := api.NewServer(files, eng, cfg.Api.Config, logging.Component(logger, "api"))
		go func() { apiErr <- srv.Start(ctx) }()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return nil
	case err := <-apiErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	}
}
