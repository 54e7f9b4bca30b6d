package postgres

import (
	"testing"
	"time"

	"expense-tracker/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:            "db.internal",
		Port:            "6432",
		User:            "tracker",
		Password:        "secret",
		DBName:          "expense_tracker",
		SSLMode:         "disable",
		MaxConns:        8,
		MinConns:        20,
		MaxConnLifetime: 30 * time.Minute,
		ConnectTimeout:  3 * time.Second,
	}

	poolConfig, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", poolConfig.ConnConfig.Host)
	assert.Equal(t, uint16(6432), poolConfig.ConnConfig.Port)
	assert.Equal(t, "expense_tracker", poolConfig.ConnConfig.Database)
	assert.Equal(t, int32(8), poolConfig.MaxConns)
	assert.Equal(t, int32(8), poolConfig.MinConns, "min is capped at max")
	assert.Equal(t, 30*time.Minute, poolConfig.MaxConnLifetime)
	assert.Equal(t, 3*time.Second, poolConfig.ConnConfig.ConnectTimeout)
}

func TestPoolConfig_KeepsDefaults(t *testing.T) {
	defaults, err := PoolConfig(&config.DatabaseConfig{Host: "localhost", Port: "5432", SSLMode: "disable"})
	require.NoError(t, err)

	assert.Positive(t, defaults.MaxConns)
	assert.Equal(t, int32(0), defaults.MinConns)
}

func TestPoolConfig_BadPort(t *testing.T) {
	_, err := PoolConfig(&config.DatabaseConfig{Host: "localhost", Port: "not-a-port", SSLMode: "disable"})
	assert.Error(t, err)
}
