package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "ES", cfg.Engine.CountryCode)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// GIVEN
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
scheduler:
  interval: 1h
engine:
  latitude: 40.4168
  longitude: -3.7038
redis:
  addr: localhost:6379
log:
  format: text
`), 0o600))

	// WHEN
	cfg, err := Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.InitialDelay, "untouched keys keep defaults")
	require.NotNil(t, cfg.Engine.Latitude)
	assert.InDelta(t, 40.4168, *cfg.Engine.Latitude, 1e-9)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 6*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "shift-forecast.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "server:\n  hostname: x\n", "hostname"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"half location", "engine:\n  latitude: 40\n", "set together"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"zero interval", "scheduler:\n  interval: 0s\n", "scheduler.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := Parse([]byte(tt.yaml), &cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_DisabledSchedulerAllowsZeroInterval(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse([]byte("scheduler:\n  enabled: false\n  interval: 0s\n"), &cfg))
	assert.False(t, cfg.Scheduler.Enabled)
}
