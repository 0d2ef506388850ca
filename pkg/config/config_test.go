package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.DB.Driver)
	assert.Equal(t, "1", cfg.SRI.Ambiente)
	assert.Equal(t, "001", cfg.SRI.Establecimiento)
	assert.Equal(t, 3, cfg.SRI.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SRI_AMBIENTE", "2")
	t.Setenv("WORKER_POLL_INTERVAL", "10")
	t.Setenv("SRI_LEASE_TIMEOUT", "2m")
	t.Setenv("WORKER_ENABLED", "false")
	t.Setenv("DB_MAX_CONNS", "x")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.SRI.Ambiente)
	assert.Equal(t, 10*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.SRI.LeaseTimeout)
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, 25, cfg.DB.MaxConns, "valor inválido usa el defecto")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SRI_AMBIENTE", "3")
	_, err = Load()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "osiris", Password: "p@ss", DBName: "osiris", SSLMode: "disable"}
	assert.Equal(t, "postgres://osiris:p%40ss@db:5432/osiris?sslmode=disable", c.DSN())
	assert.Equal(t, c.DSN(), c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
