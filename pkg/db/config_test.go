package db

import (
	"testing"

	"github.com/kolopay/kolopay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.Config{
		DBType:            "postgres",
		DBHost:            "db.internal",
		DBPort:            "5433",
		DBName:            "kolopay",
		DBUser:            "kolopay",
		DBPassword:        "secret",
		DBSSLMode:         "require",
		DBMaxIdleConn:     5,
		DBMaxOpenConn:     20,
		DBConnMaxLifetime: 300,
	})

	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "5433", cfg.Port)
	assert.Equal(t, "kolopay", cfg.Name)
	assert.Equal(t, "kolopay", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, 5, cfg.MaxIdleConn)
	assert.Equal(t, 20, cfg.MaxOpenConn)
	assert.Equal(t, 300, cfg.ConnMaxLifetime)
}

func TestDialect(t *testing.T) {
	_, err := Dialect(Config{Type: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	_, err = Dialect(Config{Type: "postgres", Host: "localhost", Port: "5432", Name: "kolopay"})
	require.NoError(t, err)

	// Only postgres and sqlite are supported; the migrations lean on
	// partial indexes and ON CONFLICT targets other engines reject.
	_, err = Dialect(Config{Type: "mysql"})
	require.Error(t, err)
}
