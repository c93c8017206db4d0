package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chtzvt/dropslurp/internal/engine"
	"github.com/spf13/viper"
)

var envKeys = []string{
	"log.level", "log.format", "log.file",
	"log.max_size_mb", "log.max_backups", "log.max_age_days", "log.compress",
	"storage.root", "storage.init_folders",
	"watch.dir", "watch.patterns", "watch.directories", "watch.scan_interval",
	"watch.error_backoff", "watch.retry_delay", "watch.purge_before_start", "watch.purge_age",
	"watch.active_from", "watch.active_until", "watch.workers", "watch.queue_size",
	"routing.delete_on_success", "routing.delete_on_failure", "routing.completed_dir",
	"routing.archive_by_date", "routing.failed_dir", "routing.duplicate_dir", "routing.check_exists",
	"processor.name", "processor.dedupe_cache",
	"secrets.file", "secrets.key", "secrets.key_file",
	"api.enabled", "api.listen_addr", "api.auth_tokens", "api.max_upload_mb", "api.unique_name_len",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("watch.dir", "inbox")
	v.SetDefault("watch.scan_interval", engine.DefaultScanInterval)
	v.SetDefault("watch.error_backoff", engine.DefaultErrorBackoff)
	v.SetDefault("watch.retry_delay", engine.DefaultRetryDelay)
	v.SetDefault("watch.purge_before_start", true)
	v.SetDefault("watch.purge_age", engine.DefaultPurgeAge)
	v.SetDefault("watch.workers", engine.DefaultWorkers)
	v.SetDefault("watch.queue_size", engine.DefaultQueueSize)
	v.SetDefault("processor.name", "log")
	v.SetDefault("secrets.file", "secrets.json")
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.max_upload_mb", 512)
}

// LoadConfig reads cfgFile, or dropslurpd.yaml from the working directory or
// /etc/dropslurpd/, overlays DROPSLURPD_* environment variables and validates
// the result. A missing default config file is not an error.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("dropslurpd")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dropslurpd/")
	}

	v.SetEnvPrefix("DROPSLURPD") // env vars like DROPSLURPD_WATCH__DIR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve validates cfg and turns every relative directory into an absolute
// path under the storage root.
func (c *Config) Resolve() error {
	if c.Storage.Root == "" {
		return errors.New("storage.root is required")
	}
	root, err := filepath.Abs(c.Storage.Root)
	if err != nil {
		return fmt.Errorf("storage.root: %w", err)
	}
	c.Storage.Root = root

	if c.Watch.Dir == "" {
		c.Watch.Dir = root
	}
	c.Watch.Dir = c.under(c.Watch.Dir)
	c.Routing.CompletedDir = c.under(c.Routing.CompletedDir)
	c.Routing.FailedDir = c.under(c.Routing.FailedDir)
	c.Routing.DuplicateDir = c.under(c.Routing.DuplicateDir)
	c.Secrets.File = c.under(c.Secrets.File)
	c.Secrets.KeyFile = c.under(c.Secrets.KeyFile)

	for name, p := range map[string]string{
		"routing.completed_dir": c.Routing.CompletedDir,
		"routing.failed_dir":    c.Routing.FailedDir,
		"routing.duplicate_dir": c.Routing.DuplicateDir,
		"secrets.file":          c.Secrets.File,
		"secrets.key_file":      c.Secrets.KeyFile,
	} {
		if within(c.Watch.Dir, p) {
			return fmt.Errorf("%s must not be inside watch.dir %s", name, c.Watch.Dir)
		}
	}

	if (c.Watch.ActiveFrom == "") != (c.Watch.ActiveUntil == "") {
		return errors.New("watch.active_from and watch.active_until must be set together")
	}
	if c.Watch.ActiveFrom != "" {
		if _, err := engine.Window(c.Watch.ActiveFrom, c.Watch.ActiveUntil); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
	}
	if c.Watch.Workers <= 0 {
		return errors.New("watch.workers must be positive")
	}
	if c.Processor.Name == "" {
		return errors.New("processor.name is required")
	}
	if c.Api.Enabled && len(c.Api.AuthTokens) == 0 {
		return errors.New("api.auth_tokens is required when the API is enabled")
	}
	return nil
}

// within reports whether p is dir itself or lies below it.
func within(dir, p string) bool {
	if p == "" {
		return false
	}
	if p == dir {
		return true
	}
	rel, err := filepath.Rel(dir, p)
	return err == nil && filepath.IsLocal(rel)
}

func (c *Config) under(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Storage.Root, p)
}

// Folders lists the directories under the storage root that init should create.
func (c *Config) Folders() []string {
	folders := append([]string{}, c.Storage.InitFolders...)
	for _, dir := range []string{c.Watch.Dir, c.Routing.CompletedDir, c.Routing.FailedDir, c.Routing.DuplicateDir} {
		if dir == "" {
			continue
		}
		if rel, err := filepath.Rel(c.Storage.Root, dir); err == nil && filepath.IsLocal(rel) {
			folders = append(folders, rel)
		}
	}
	return folders
}

// Active returns the engine gate for the configured window, or nil for always.
func (w WatchConfig) Active() func(now time.Time) bool {
	if w.ActiveFrom == "" {
		return nil
	}
	fn, err := engine.Window(w.ActiveFrom, w.ActiveUntil)
	if err != nil {
		return nil
	}
	return fn
}

// ProcessorOptions returns the processor options with dedupe_cache folded in.
func (p ProcessorConfig) ProcessorOptions() map[string]interface{} {
	opts := make(map[string]interface{}, len(p.Options)+1)
	for k, v := range p.Options {
		opts[k] = v
	}
	if p.DedupeCache > 0 {
		opts["dedupe_cache"] = p.DedupeCache
	}
	return opts
}
