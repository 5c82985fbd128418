package initshim

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Configuration keys
const (
	KeyUnitDirs         = "unit_dirs"
	KeyRuntimeDir       = "runtime_dir"
	KeyManagedService   = "managed_service"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyWatcherStopGrace = "watcher.stop_grace"
	KeyReap             = "reap"
)

// EnvPrefix prefixes the environment variables read by LoadConfig, e.g.
// INITSHIM_MANAGED_SERVICE or INITSHIM_LOG_LEVEL.
const EnvPrefix = "INITSHIM"

// LogConfig configures NewLogger
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is "console" or "json"
	Format string `mapstructure:"format"`
}

// WatcherConfig configures the path watcher
type WatcherConfig struct {
	// StopGrace bounds how long a stopping watcher may spend on the event
	// it is handling before that handler's context is cancelled
	StopGrace time.Duration `mapstructure:"stop_grace"`
}

// Config is the process configuration shared by init and systemctl.
type Config struct {
	// UnitDirs are searched for unit files, highest precedence first
	UnitDirs []string `mapstructure:"unit_dirs"`
	// RuntimeDir holds the PID file and the activation spool
	RuntimeDir string `mapstructure:"runtime_dir"`
	// ManagedService is started by process-one and stopped on shutdown.
	// Empty means process-one only watches paths.
	ManagedService UnitName `mapstructure:"managed_service"`
	Log            LogConfig     `mapstructure:"log"`
	Watcher        WatcherConfig `mapstructure:"watcher"`
	// Reap forces zombie reaping even when not running as PID 1
	Reap bool `mapstructure:"reap"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyUnitDirs, DefaultUnitDirs)
	v.SetDefault(KeyRuntimeDir, DefaultRuntimeDir)
	v.SetDefault(KeyManagedService, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyWatcherStopGrace, DefaultWatcherStopGrace)
	v.SetDefault(KeyReap, false)
}

// BindEnv makes every key readable from INITSHIM_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig decodes and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.ManagedService != "" {
		cfg.ManagedService = NormalizeUnitName(string(cfg.ManagedService))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	merr := &MultiError{}
	if len(c.UnitDirs) == 0 {
		merr.Add(errors.New("unit_dirs: at least one directory is required"))
	}
	for _, dir := range c.UnitDirs {
		if !filepath.IsAbs(dir) {
			merr.Add(fmt.Errorf("unit_dirs: %q is not absolute", dir))
		}
	}
	if !filepath.IsAbs(c.RuntimeDir) {
		merr.Add(fmt.Errorf("runtime_dir: %q is not absolute", c.RuntimeDir))
	}
	if c.ManagedService != "" {
		if !c.ManagedService.Valid() {
			merr.Add(fmt.Errorf("managed_service: %w: %q", ErrInvalidUnitName, c.ManagedService))
		} else if c.ManagedService.Type() != UnitTypeService {
			merr.Add(fmt.Errorf("managed_service: %q is not a service unit", c.ManagedService))
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		merr.Add(fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		merr.Add(fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Watcher.StopGrace < 0 {
		merr.Add(fmt.Errorf("watcher.stop_grace: negative duration %s", c.Watcher.StopGrace))
	}
	return merr.Err()
}
