package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/reservations")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, time.Hour, cfg.Cache.ShortTTL)
	assert.Equal(t, 5*time.Second, cfg.Collaborators.Timeout)
	assert.True(t, cfg.CancelRequiresRefund)
	assert.Equal(t, "@daily", cfg.Worker.SweepSchedule)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/reservations")
	t.Setenv("JWT_SECRET", "secret")

	t.Run("duration", func(t *testing.T) {
		t.Setenv("CACHE_SHORT_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bool", func(t *testing.T) {
		t.Setenv("CANCEL_REQUIRES_REFUND", "maybe")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("int", func(t *testing.T) {
		t.Setenv("REDIS_DB", "zero")
		_, err := Load()
		assert.Error(t, err)
	})
}
