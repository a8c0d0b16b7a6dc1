// Package config loads the configuration surface the core consumes
// (spec.md §6) from defaults, a config file, and the environment, using
// viper — following the same Loader/precedence pattern as the quantmind
// gendocs example (defaults -> file -> env -> CLI overrides).
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xanadossd/avscan-core/internal/cerrors"
)

const envPrefix = "AVSCAN"

// Loader wraps a viper instance pre-seeded with spec §6's defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults registered and environment
// variables wired in (AVSCAN_CACHE_MAX_ENTRIES style, "." -> "_").
func NewLoader() *Loader {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("config")
	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l := &Loader{v: v}
	l.setDefaults()
	return l
}

func (l *Loader) setDefaults() {
	cores := runtime.NumCPU()

	configDir, dataDir, cacheDir := defaultDirs()
	l.v.SetDefault("dirs.config_dir", configDir)
	l.v.SetDefault("dirs.data_dir", dataDir)
	l.v.SetDefault("dirs.cache_dir", cacheDir)
	l.v.SetDefault("debug", false)

	l.v.SetDefault("cache.max_entries", 1024)
	l.v.SetDefault("cache.ttl_seconds", 3600)

	l.v.SetDefault("io.small_threshold", 1<<20)    // 1 MiB
	l.v.SetDefault("io.large_threshold", 100<<20)  // 100 MiB
	l.v.SetDefault("io.chunk_size", 256<<10)       // 256 KiB
	l.v.SetDefault("io.buffer_size", 512<<10)       // 2 x chunk_size
	l.v.SetDefault("io.max_concurrent_ops", 20)

	l.v.SetDefault("workers.min", max(4, cores))
	l.v.SetDefault("workers.max", min(100, cores*12))
	l.v.SetDefault("workers.interval", 5.0)

	l.v.SetDefault("scan.batch_size", 50)
	l.v.SetDefault("scan.max_files", 0) // 0 = unbounded
	l.v.SetDefault("scan.memory_mb", 512)
	l.v.SetDefault("scan.depth", 0) // 0 = unbounded
	l.v.SetDefault("scan.filter", "all")
	l.v.SetDefault("scan.include_hidden", false)
	l.v.SetDefault("scan.timeout_seconds", 0) // 0 = no timeout

	l.v.SetDefault("quarantine.auto_quarantine", false)
	l.v.SetDefault("quarantine.retention_days", 30)

	l.v.SetDefault("signatures.auto_update", true)
	l.v.SetDefault("signatures.update_frequency", "daily")
	l.v.SetDefault("signatures.scanner_path", "clamscan")
	l.v.SetDefault("signatures.daemon_socket", "/run/clamav/clamd.ctl")
	l.v.SetDefault("signatures.update_command", "freshclam")
	l.v.SetDefault("signatures.helper_path", "")
	l.v.SetDefault("signatures.scan_timeout_seconds", 30)
	l.v.SetDefault("signatures.update_timeout_seconds", 300)

	l.v.SetDefault("rate_limits.user_scan.calls", 30)
	l.v.SetDefault("rate_limits.user_scan.period", 60.0)
	l.v.SetDefault("rate_limits.user_scan.burst", 10)
	l.v.SetDefault("rate_limits.user_scan.adaptive", true)

	l.v.SetDefault("rate_limits.background_scan.calls", 10)
	l.v.SetDefault("rate_limits.background_scan.period", 60.0)
	l.v.SetDefault("rate_limits.background_scan.burst", 3)
	l.v.SetDefault("rate_limits.background_scan.adaptive", true)

	l.v.SetDefault("rate_limits.signature_update.calls", 1)
	l.v.SetDefault("rate_limits.signature_update.period", 3600.0)
	l.v.SetDefault("rate_limits.signature_update.burst", 1)
	l.v.SetDefault("rate_limits.signature_update.adaptive", false)

	l.v.SetDefault("rate_limits.system_command.calls", 5)
	l.v.SetDefault("rate_limits.system_command.period", 60.0)
	l.v.SetDefault("rate_limits.system_command.burst", 2)
	l.v.SetDefault("rate_limits.system_command.adaptive", false)

	l.v.SetDefault("rate_limits.quarantine_action.calls", 20)
	l.v.SetDefault("rate_limits.quarantine_action.period", 60.0)
	l.v.SetDefault("rate_limits.quarantine_action.burst", 5)
	l.v.SetDefault("rate_limits.quarantine_action.adaptive", true)
}

func defaultDirs() (configDir, dataDir, cacheDir string) {
	ucd, err := os.UserConfigDir()
	if err != nil {
		ucd = "."
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		cache = "."
	}
	return filepath.Join(ucd, "avscan"), filepath.Join(ucd, "avscan"), filepath.Join(cache, "avscan")
}

// Load reads the config file at <config_dir>/config.yaml (if present) and
// returns the fully-resolved Config. A missing file is not an error —
// defaults and environment variables still apply.
func (l *Loader) Load() (*Config, error) {
	configDir := l.v.GetString("dirs.config_dir")
	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		l.v.SetConfigFile(configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, cerrors.Wrap(cerrors.KindIO, "read config file", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, cerrors.Wrap(cerrors.KindIO, "decode config", err)
	}
	if cfg.IO.BufferSize < 2*cfg.IO.ChunkSize {
		cfg.IO.BufferSize = 2 * cfg.IO.ChunkSize
	}
	return &cfg, nil
}

// Viper exposes the underlying viper instance for CLI flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }
