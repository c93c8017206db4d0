package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chtzvt/dropslurp/cmd/dropslurpd/config"
	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/chtzvt/dropslurp/internal/filter"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/processor"
	"github.com/chtzvt/dropslurp/internal/secrets"
	"github.com/rs/zerolog"
)

func cmdContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadRuntime reads the config and builds the root logger.
func loadRuntime() (*config.Config, zerolog.Logger, io.Closer, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("config error: %w", err)
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, logger, closer, nil
}

// openSecrets opens the sealed store when a key is configured. Without one it
// returns nil, and secret lookups fall back to the environment.
func openSecrets(cfg config.SecretsConfig) (*secrets.Store, error) {
	var (
		key [32]byte
		err error
	)
	switch {
	case cfg.Key != "":
		key, err = secrets.ParseKey(cfg.Key)
	case cfg.KeyFile != "":
		key, err = secrets.LoadOrGenerateKey(cfg.KeyFile)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets key: %w", err)
	}
	return secrets.Open(cfg.File, key)
}

// requireSecrets is openSecrets for commands that cannot work without a store.
func requireSecrets(cfg config.SecretsConfig) (*secrets.Store, error) {
	store, err := openSecrets(cfg)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("secrets.key or secrets.key_file must be configured")
	}
	return store, nil
}

// buildFilter selects inbox entries: sub-directories when watch.directories is
// set, otherwise regular non-temporary files matching watch.patterns.
func buildFilter(cfg config.WatchConfig, p engine.Processor) (filter.Filter, error) {
	if cfg.Directories {
		if !processor.HandlesDirectories(p) {
			return nil, fmt.Errorf("watch.directories is set but the processor only handles files")
		}
		return filter.Directories(), nil
	}
	parts := []filter.Filter{filter.Files(), filter.NotTemp()}
	if len(cfg.Patterns) > 0 {
		parts = append(parts, filter.Glob(cfg.Patterns...))
	}
	return filter.And(parts...), nil
}

func closeLog(c io.Closer) {
	if c != nil {
		if err := c.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close log:", err)
		}
	}
}
