package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "ledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled())
		assert.Equal(t, "memory", cfg.Storage.Type)
		assert.Equal(t, "binary", cfg.Ledger.AgingScheme)
		assert.Equal(t, int64(10<<20), cfg.Ledger.MaxStatementSize())
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
		assert.False(t, cfg.Telemetry.LogsEnabled)
	})

	t.Run("loads values from environment variables with LEDGER prefix", func(t *testing.T) {
		t.Setenv("LEDGER_APP_PORT", "9000")
		t.Setenv("LEDGER_DATABASE_HOST", "testdb.local")
		t.Setenv("LEDGER_DATABASE_PORT", "5433")
		t.Setenv("LEDGER_DATABASE_PASSWORD", "testpass")
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("LEDGER_REDIS_HOST", "cache.local")
		t.Setenv("LEDGER_LEDGER_AGING_SCHEME", "standard")
		t.Setenv("LEDGER_IDEMPOTENCY_TTL", "2h")
		t.Setenv("LEDGER_TELEMETRY_LOGS_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.Redis.Enabled())
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.Equal(t, "standard", cfg.Ledger.AgingScheme)
		assert.Equal(t, 2*time.Hour, cfg.Idempotency.TTL)
		assert.True(t, cfg.Telemetry.LogsEnabled)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown aging scheme", func(t *testing.T) {
		t.Setenv("LEDGER_LEDGER_AGING_SCHEME", "weekly")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "aging_scheme")
	})

	t.Run("s3 storage requires a bucket", func(t *testing.T) {
		t.Setenv("LEDGER_STORAGE_TYPE", "s3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})

	t.Run("requiring redis without a host fails", func(t *testing.T) {
		t.Setenv("LEDGER_IDEMPOTENCY_REQUIRE_REDIS", "true")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestValidate_Production(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{App: AppConfig{Env: "production"}}
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		applyDefaults(cfg)
		return cfg
	}

	require.NoError(t, valid().validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing password", func(c *Config) { c.Database.Password = "" }, "database.password"},
		{"ssl disabled", func(c *Config) { c.Database.SSLMode = "disable" }, "sslmode"},
		{"sqlite", func(c *Config) { c.Database.Driver = "sqlite" }, "sqlite"},
		{"wildcard cors", func(c *Config) { c.HTTP.CORSAllowOrigins = []string{"*"} }, "cors_allow_origins"},
		{"full sql logging", func(c *Config) { c.Telemetry.DBLogFullSQL = true }, "db_log_full_sql"},
		{"sampling ratio", func(c *Config) { c.Telemetry.SamplingRatio = 2 }, "sampling_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("postgres escapes credentials", func(t *testing.T) {
		d := DatabaseConfig{
			Driver: "postgres", Host: "db", Port: 5432, User: "led ger", Password: "p@ss:word",
			DBName: "ledger", SSLMode: "disable",
		}
		assert.Equal(t, "postgres://led%20ger:p%40ss%3Aword@db:5432/ledger?sslmode=disable", d.DSN())
	})

	t.Run("sqlite uses the path", func(t *testing.T) {
		d := DatabaseConfig{Driver: "sqlite", Path: ":memory:"}
		assert.Equal(t, ":memory:", d.DSN())
	})
}
