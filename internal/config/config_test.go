package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
[aerodatabox]
api_key = "from-file"

[[airports]]
code = "FRA"
name = "Frankfurt"
lat = 50.0379
lon = 8.5622
tz = "Europe/Berlin"

[[airports]]
code = "EWR"
name = "Newark"
lat = 40.6895
lon = -74.1745
tz = "America/New_York"

[[segments]]
id = "out2"
flight = "UA 8839"
from = "FRA"
to = "EWR"
departure = "2025-10-11T13:20"
arrival = "2025-10-11T21:40"

[codeshares]
"UA 8839" = "LH 402"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndDefaults(t *testing.T) {
	t.Setenv(EnvAeroDataBoxKey, "")
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 15, cfg.Tracking.PositionIntervalSeconds)
	assert.Equal(t, 8.0, cfg.Tracking.BoxSpanDegrees)
	assert.Equal(t, 10, cfg.Weather.CacheExpiryMinutes)
	assert.Equal(t, "from-file", cfg.AeroDataBox.APIKey)
	assert.False(t, cfg.OpenSky.Enabled)

	it, err := cfg.Itinerary()
	require.NoError(t, err)
	assert.Len(t, it.Segments(), 1)
	assert.Equal(t, "LH402", it.Codeshares().Resolve("UA8839"))
}

func TestEnvironmentOverridesKey(t *testing.T) {
	t.Setenv(EnvAeroDataBoxKey, "  from-env ")
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AeroDataBox.APIKey)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative retries", func(c *Config) { c.Weather.MaxRetries = -1 }},
		{"negative interval", func(c *Config) { c.Tracking.PositionIntervalSeconds = -5 }},
		{"huge span", func(c *Config) { c.Tracking.BoxSpanDegrees = 120 }},
		{"no segments", func(c *Config) { c.Segments = nil }},
		{"unknown airport", func(c *Config) { c.Segments[0].To = "JFK" }},
		{"bad zone", func(c *Config) { c.Airports[0].TZ = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "config file not found")

	_, err = Load(writeConfig(t, "[server\nport = 1"))
	assert.ErrorContains(t, err, "failed to decode config file")
}

func TestLoadWithFallbackUsesPreferredPath(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Segments, 1)
}

func TestShippedConfigIsValid(t *testing.T) {
	t.Setenv(EnvAeroDataBoxKey, "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	it, err := cfg.Itinerary()
	require.NoError(t, err)
	assert.Len(t, it.Segments(), 4)
	assert.True(t, cfg.OpenSky.Enabled)
}
