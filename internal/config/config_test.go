package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-engine/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "readiness.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3, cfg.Engine.MaxDisplaySignals)
	assert.Equal(t, 5, cfg.Engine.BatchConcurrency)
	assert.Equal(t, 3, cfg.Engine.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Engine.Circuit.FailureThreshold)
	assert.Equal(t, "readiness-drift", cfg.Temporal.TaskQueue)
	assert.NoError(t, cfg.Validate("cli"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/readiness
log:
  level: debug
  format: console
server:
  port: 9090
engine:
  max_display_signals: 3
  global_weights:
    FINANCIAL: 0.5
    market: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Engine.MaxDisplaySignals)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Engine.BatchConcurrency)

	w, err := cfg.Engine.Weights()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w[model.CategoryFinancial], 1e-9)
	assert.InDelta(t, 0.5, w[model.CategoryMarket], 1e-9)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("READINESS_STORE_DRIVER", "postgres")
	t.Setenv("READINESS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("READINESS_SERVER_PORT", "3000")
	t.Setenv("READINESS_ENGINE_MAX_DISPLAY_SIGNALS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Engine.MaxDisplaySignals)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "readiness.db"
	cfg.Engine.MaxDisplaySignals = 5
	cfg.Engine.BatchConcurrency = 5
	cfg.Server.Port = 8080
	cfg.Temporal.HostPort = "localhost:7233"
	cfg.Temporal.TaskQueue = "readiness-drift"
	return cfg
}

func TestValidateModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{"cli ok", "cli", func(*Config) {}, ""},
		{"serve ok", "serve", func(*Config) {}, ""},
		{"serve bad port", "serve", func(c *Config) { c.Server.Port = 0 }, "server.port must be > 0"},
		{"serve negative rate", "serve", func(c *Config) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"worker ok", "worker", func(*Config) {}, ""},
		{"worker no host", "worker", func(c *Config) { c.Temporal.HostPort = "" }, "temporal.host_port is required"},
		{"migrate needs url", "migrate", func(*Config) {}, "store.database_url is required"},
		{"postgres needs url", "cli", func(c *Config) { c.Store.Driver = "postgres" }, "required for the postgres driver"},
		{"unknown driver", "cli", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be postgres or sqlite"},
		{"sqlite needs path", "cli", func(c *Config) { c.Store.SQLitePath = "" }, "store.sqlite_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateEngineBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Engine.BatchConcurrency = 0
	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch_concurrency must be between 1 and 50")

	cfg.Engine.BatchConcurrency = 51
	assert.Error(t, cfg.Validate("cli"))

	cfg.Engine.BatchConcurrency = 50
	assert.NoError(t, cfg.Validate("cli"))

	cfg.Engine.MaxDisplaySignals = 0
	err = cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_display_signals")
}

func TestEngineWeights(t *testing.T) {
	w, err := EngineConfig{}.Weights()
	require.NoError(t, err)
	assert.Nil(t, w)

	_, err = EngineConfig{GlobalWeights: map[string]float64{"hr": 1}}.Weights()
	assert.ErrorIs(t, err, model.ErrUnknownCategory)

	cfg := validDefaults()
	cfg.Engine.GlobalWeights = map[string]float64{"financial": -1}
	err = cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight must be >= 0")
}
