package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Session.GracePeriod)
	assert.Equal(t, 10*time.Minute, cfg.Session.StaleThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Relay.InputMinInterval)
	assert.Equal(t, 67*time.Millisecond, cfg.Relay.PositionMinInterval)
	assert.Equal(t, float64(1000), cfg.Relay.WorldWidth)
	assert.Equal(t, float64(600), cfg.Relay.WorldHeight)
	assert.Equal(t, float64(28), cfg.Relay.PlayerWidth)
	assert.Equal(t, float64(12), cfg.Relay.MaxVelX)
	assert.Equal(t, float64(20), cfg.Relay.MaxVelY)
	assert.Equal(t, 5*time.Minute, cfg.WebSocket.IdleTimeout)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, int64(4096), cfg.WebSocket.MaxMessageSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EDUO_SERVER_PORT", "9090")
	t.Setenv("EDUO_SESSION_GRACE_PERIOD", "2s")
	t.Setenv("EDUO_RELAY_WORLD_WIDTH", "800")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Session.GracePeriod)
	assert.Equal(t, float64(800), cfg.Relay.WorldWidth)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("EDUO_SERVER_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}
