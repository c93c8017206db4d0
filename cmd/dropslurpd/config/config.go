package config

import (
	"time"

	"github.com/chtzvt/dropslurp/internal/api"
	"github.com/chtzvt/dropslurp/internal/logging"
	"github.com/chtzvt/dropslurp/internal/router"
)

type StorageConfig struct {
	Root        string   `mapstructure:"root"`
	InitFolders []string `mapstructure:"init_folders"`
}

type WatchConfig struct {
	Dir              string        `mapstructure:"dir"`
	Patterns         []string      `mapstructure:"patterns"`
	Directories      bool          `mapstructure:"directories"`
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	PurgeBeforeStart bool          `mapstructure:"purge_before_start"`
	PurgeAge         time.Duration `mapstructure:"purge_age"`
	ActiveFrom       string        `mapstructure:"active_from"`
	ActiveUntil      string        `mapstructure:"active_until"`
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
}

type ProcessorConfig struct {
	Name        string                 `mapstructure:"name"`
	Options     map[string]interface{} `mapstructure:"options"`
	DedupeCache int                    `mapstructure:"dedupe_cache"`
}

type SecretsConfig struct {
	File    string `mapstructure:"file"`
	Key     string `mapstructure:"key"`
	KeyFile string `mapstructure:"key_file"`
}

type ApiConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	api.Config `mapstructure:",squash"`
}

type Config struct {
	Log       logging.Config  `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Routing   router.Config   `mapstructure:"routing"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Api       ApiConfig       `mapstructure:"api"`
}
