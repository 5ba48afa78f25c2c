package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) *Config {
	t.Helper()
	cfg := &Config{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)
	require.NoError(t, fs.Parse(args))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := parse(t)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, ListingMemory, cfg.ListingSource)
	assert.Equal(t, 2*time.Minute, cfg.LobbyGrace)
	assert.Equal(t, 64, cfg.QueueSize)
	require.NoError(t, cfg.Validate())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lvl)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TICTACGO_PORT", "9090")
	t.Setenv("TICTACGO_LOBBY_GRACE", "45s")
	t.Setenv("TICTACGO_LOG_JSON", "true")
	t.Setenv("TICTACGO_ALLOWED_ORIGINS", "example.com,*.example.org")

	cfg := parse(t)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.LobbyGrace)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.AllowedOrigins)
	assert.IsType(t, &logrus.JSONFormatter{}, cfg.NewLogger().Formatter)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("TICTACGO_PORT", "9090")
	cfg := parse(t, "--port", "7070", "--bind", "127.0.0.1")
	assert.Equal(t, "127.0.0.1:7070", cfg.Addr())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad port", []string{"--port", "0"}, "invalid port"},
		{"half a key pair", []string{"--token-private-key", "priv.key"}, "must be provided together"},
		{"redis listing without redis", []string{"--listing-source", "redis"}, "requires --redis-url"},
		{"unknown listing", []string{"--listing-source", "postgres"}, "unknown listing source"},
		{"bad queue", []string{"--queue-size", "0"}, "invalid queue size"},
		{"bad level", []string{"--log-level", "loud"}, "not a valid logrus Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parse(t, tt.args...).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := parse(t, "--listing-source", "redis", "--redis-url", "redis://localhost:6379/0")
	assert.NoError(t, cfg.Validate())
}
