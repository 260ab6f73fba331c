package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"GLASS_APP_NAME":                 os.Getenv("GLASS_APP_NAME"),
		"GLASS_APP_ENV":                  os.Getenv("GLASS_APP_ENV"),
		"GLASS_APP_PORT":                 os.Getenv("GLASS_APP_PORT"),
		"GLASS_DATABASE_HOST":            os.Getenv("GLASS_DATABASE_HOST"),
		"GLASS_DATABASE_PORT":            os.Getenv("GLASS_DATABASE_PORT"),
		"GLASS_DATABASE_USER":            os.Getenv("GLASS_DATABASE_USER"),
		"GLASS_DATABASE_PASSWORD":        os.Getenv("GLASS_DATABASE_PASSWORD"),
		"GLASS_DATABASE_DBNAME":          os.Getenv("GLASS_DATABASE_DBNAME"),
		"GLASS_DATABASE_SSLMODE":         os.Getenv("GLASS_DATABASE_SSLMODE"),
		"GLASS_COSTING_SHORTFALL_POLICY": os.Getenv("GLASS_COSTING_SHORTFALL_POLICY"),
		"GLASS_COSTING_IDEMPOTENCY_TTL":  os.Getenv("GLASS_COSTING_IDEMPOTENCY_TTL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "glasserp-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "glasserp", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, "reject", cfg.Costing.ShortfallPolicy)
		assert.Equal(t, 24*time.Hour, cfg.Costing.IdempotencyTTL)
	})

	t.Run("loads values from environment variables with GLASS prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("GLASS_APP_NAME", "test-app")
		os.Setenv("GLASS_APP_PORT", "9000")
		os.Setenv("GLASS_DATABASE_HOST", "testdb.local")
		os.Setenv("GLASS_DATABASE_PORT", "5433")
		os.Setenv("GLASS_COSTING_SHORTFALL_POLICY", "allow_shortfall")
		os.Setenv("GLASS_COSTING_IDEMPOTENCY_TTL", "1h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "allow_shortfall", cfg.Costing.ShortfallPolicy)
		assert.Equal(t, time.Hour, cfg.Costing.IdempotencyTTL)
	})

	t.Run("rejects an unknown shortfall policy", func(t *testing.T) {
		clearEnv()
		os.Setenv("GLASS_COSTING_SHORTFALL_POLICY", "silently_undercost")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires a database password", func(t *testing.T) {
		clearEnv()
		os.Setenv("GLASS_APP_ENV", "production")
		os.Setenv("GLASS_DATABASE_SSLMODE", "require")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "glass",
		Password: "s3cret",
		DBName:   "glasserp",
		SSLMode:  "require",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "glasserp")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
