package initshim

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DefaultUnitDirs, cfg.UnitDirs)
	assert.Equal(t, DefaultRuntimeDir, cfg.RuntimeDir)
	assert.Empty(t, cfg.ManagedService)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, DefaultWatcherStopGrace, cfg.Watcher.StopGrace)
	assert.False(t, cfg.Reap)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "config.yaml", `
unit_dirs:
  - /etc/systemd/system
  - /opt/units
runtime_dir: /run/app
managed_service: nginx
log:
  level: debug
  format: json
watcher:
  stop_grace: 500ms
reap: true
`)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/systemd/system", "/opt/units"}, cfg.UnitDirs)
	assert.Equal(t, "/run/app", cfg.RuntimeDir)
	assert.Equal(t, UnitName("nginx.service"), cfg.ManagedService)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.StopGrace)
	assert.True(t, cfg.Reap)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("INITSHIM_MANAGED_SERVICE", "php7.4-fpm")
	t.Setenv("INITSHIM_LOG_LEVEL", "warn")
	t.Setenv("INITSHIM_WATCHER_STOP_GRACE", "3s")

	v := viper.New()
	BindEnv(v)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, UnitName("php7.4-fpm.service"), cfg.ManagedService)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.Watcher.StopGrace)
}

func TestLoadConfigInvalid(t *testing.T) {
	v := viper.New()
	v.Set(KeyUnitDirs, []string{"relative/units"})
	v.Set(KeyRuntimeDir, "run")
	v.Set(KeyManagedService, "app.path")
	v.Set(KeyLogLevel, "loud")
	v.Set(KeyLogFormat, "xml")
	v.Set(KeyWatcherStopGrace, -time.Second)

	_, err := LoadConfig(v)
	require.Error(t, err)
	var merr *MultiError
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 6)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		log, err := NewLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, log)
	}
	_, err := NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
