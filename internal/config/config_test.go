package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToSurrealAndRequiresItsSettings(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SURREAL_URL", "")
	t.Setenv("SURREAL_NS", "")
	t.Setenv("SURREAL_DB", "")

	_, err := New()
	require.Error(t, err, "surreal driver without connection settings must fail")

	t.Setenv("SURREAL_URL", "ws://localhost:8000")
	t.Setenv("SURREAL_NS", "courier")
	t.Setenv("SURREAL_DB", "broker")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, DriverSurreal, cfg.StoreDriver)
	assert.Equal(t, "ws://localhost:8000", cfg.DBUrl)
}

func TestNewMemoryDriverNeedsNoDatabase(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverMemory)
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := New()
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}
