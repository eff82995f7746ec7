package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 32, cfg.DefaultChannelCapacity)
	assert.Equal(t, 65536, cfg.MaxChannelCapacity)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, 30*time.Second, cfg.WSPingInterval)
	assert.Equal(t, time.Minute, cfg.PongWait())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_CHANNEL_CAPACITY", "8")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1")
	t.Setenv("WS_PING_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 8, cfg.DefaultChannelCapacity)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)
	assert.Zero(t, cfg.PongWait())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"not a number", map[string]string{"DEFAULT_CHANNEL_CAPACITY": "lots"}},
		{"zero default", map[string]string{"DEFAULT_CHANNEL_CAPACITY": "0"}},
		{"max below default", map[string]string{"DEFAULT_CHANNEL_CAPACITY": "64", "MAX_CHANNEL_CAPACITY": "16"}},
		{"negative rate", map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
