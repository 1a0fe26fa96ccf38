package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/flightwatch/internal/itinerary"
)

// EnvAeroDataBoxKey overrides aerodatabox.api_key when set
const EnvAeroDataBoxKey = "AERODATABOX_KEY"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `toml:"server"`      // HTTP server settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
	AeroDataBox AeroDataBoxConfig `toml:"aerodatabox"` // Flight detail provider settings
	OpenSky     OpenSkyConfig     `toml:"opensky"`     // Secondary position feed settings
	Weather     WeatherConfig     `toml:"weather"`     // Weather brief settings
	Tracking    TrackingConfig    `toml:"tracking"`    // Per-segment polling settings
	Storage     StorageConfig     `toml:"storage"`     // Airline directory settings
	Airports    []AirportConfig   `toml:"airports"`    // Airports referenced by segments
	Segments    []SegmentConfig   `toml:"segments"`    // The tracked itinerary, in display order
	Codeshares  map[string]string `toml:"codeshares"`  // Marketing designator -> operating designator
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	FilePath   string `toml:"file_path"`    // Optional log file, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
}

// AeroDataBoxConfig contains flight detail provider configuration
type AeroDataBoxConfig struct {
	BaseURL               string `toml:"base_url"`                // API base URL
	APIHost               string `toml:"api_host"`                // x-rapidapi-host header value
	APIKey                string `toml:"api_key"`                 // x-rapidapi-key header value; empty disables detail lookups
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
}

// OpenSkyConfig contains secondary position feed configuration
type OpenSkyConfig struct {
	Enabled               bool   `toml:"enabled"`                 // Global switch for the secondary feed
	BaseURL               string `toml:"base_url"`                // API base URL
	CredentialsPath       string `toml:"credentials_path"`        // Optional OAuth2 credentials JSON; anonymous when absent
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
}

// WeatherConfig contains weather brief configuration
type WeatherConfig struct {
	Enabled               bool   `toml:"enabled"`                 // Whether trackers fetch weather at start
	APIBaseURL            string `toml:"api_base_url"`            // Base URL for the forecast API
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	MaxRetries            int    `toml:"max_retries"`             // Maximum number of retry attempts for failed requests
	CacheExpiryMinutes    int    `toml:"cache_expiry_minutes"`    // How long a brief is served from cache
	CacheSize             int    `toml:"cache_size"`              // Maximum cached airports
}

// TrackingConfig contains per-segment polling configuration
type TrackingConfig struct {
	PositionIntervalSeconds int     `toml:"position_interval_seconds"` // Secondary feed poll interval
	BoxSpanDegrees          float64 `toml:"box_span_degrees"`          // Half-size of the query box around the route midpoint
}

// StorageConfig contains airline directory configuration
type StorageConfig struct {
	AirlineDBPath   string `toml:"airline_db_path"`   // SQLite file for the airline directory; empty disables it
	AirlineSeedPath string `toml:"airline_seed_path"` // OpenFlights airlines.dat imported at startup when set
}

// AirportConfig is one [[airports]] entry
type AirportConfig struct {
	Code string  `toml:"code"` // IATA code
	Name string  `toml:"name"`
	Lat  float64 `toml:"lat"`
	Lon  float64 `toml:"lon"`
	TZ   string  `toml:"tz"` // IANA zone, e.g. "Europe/Berlin"
}

// SegmentConfig is one [[segments]] entry
type SegmentConfig struct {
	ID        string `toml:"id"`
	Label     string `toml:"label"`
	Flight    string `toml:"flight"`    // Designator as marketed, e.g. "UA 8839"
	From      string `toml:"from"`      // Origin airport code
	To        string `toml:"to"`        // Destination airport code
	Departure string `toml:"departure"` // Local time at origin, 2006-01-02T15:04
	Arrival   string `toml:"arrival"`   // Local time at destination, 2006-01-02T15:04
}

// Load loads the configuration from a TOML file and applies environment
// overrides.
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Default location in configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv(EnvAeroDataBoxKey)); key != "" {
		c.AeroDataBox.APIKey = key
	}
}

// Validate fills defaults and checks the configuration
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.AeroDataBox.RequestTimeoutSeconds == 0 {
		c.AeroDataBox.RequestTimeoutSeconds = 10
	}
	if c.AeroDataBox.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("aerodatabox request_timeout_seconds must be greater than 0: %d", c.AeroDataBox.RequestTimeoutSeconds)
	}

	if c.OpenSky.RequestTimeoutSeconds == 0 {
		c.OpenSky.RequestTimeoutSeconds = 10
	}
	if c.OpenSky.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("opensky request_timeout_seconds must be greater than 0: %d", c.OpenSky.RequestTimeoutSeconds)
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}

	if c.Tracking.PositionIntervalSeconds == 0 {
		c.Tracking.PositionIntervalSeconds = 15
	}
	if c.Tracking.PositionIntervalSeconds < 0 {
		return fmt.Errorf("tracking position_interval_seconds must be greater than 0: %d", c.Tracking.PositionIntervalSeconds)
	}
	if c.Tracking.BoxSpanDegrees == 0 {
		c.Tracking.BoxSpanDegrees = 8
	}
	if c.Tracking.BoxSpanDegrees < 0 || c.Tracking.BoxSpanDegrees > 90 {
		return fmt.Errorf("tracking box_span_degrees out of range: %f", c.Tracking.BoxSpanDegrees)
	}

	if len(c.Segments) == 0 {
		return fmt.Errorf("at least one [[segments]] entry is required")
	}
	if _, err := c.Itinerary(); err != nil {
		return err
	}
	return nil
}

// ValidateWeather validates the weather configuration
func (c *Config) ValidateWeather() error {
	if c.Weather.RequestTimeoutSeconds == 0 {
		c.Weather.RequestTimeoutSeconds = 10
	}
	if c.Weather.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("weather request_timeout_seconds must be greater than 0: %d", c.Weather.RequestTimeoutSeconds)
	}
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}
	if c.Weather.CacheExpiryMinutes == 0 {
		c.Weather.CacheExpiryMinutes = 10
	}
	if c.Weather.CacheExpiryMinutes < 0 {
		return fmt.Errorf("weather cache_expiry_minutes must be greater than 0: %d", c.Weather.CacheExpiryMinutes)
	}
	return nil
}

// Itinerary builds the immutable itinerary from the airport, segment and
// codeshare sections.
func (c *Config) Itinerary() (*itinerary.Itinerary, error) {
	airports := make([]itinerary.AirportSpec, 0, len(c.Airports))
	for _, a := range c.Airports {
		airports = append(airports, itinerary.AirportSpec{
			Code: a.Code,
			Name: a.Name,
			Lat:  a.Lat,
			Lon:  a.Lon,
			TZ:   a.TZ,
		})
	}

	segments := make([]itinerary.SegmentSpec, 0, len(c.Segments))
	for _, s := range c.Segments {
		segments = append(segments, itinerary.SegmentSpec{
			ID:        s.ID,
			Label:     s.Label,
			Flight:    s.Flight,
			From:      s.From,
			To:        s.To,
			Departure: s.Departure,
			Arrival:   s.Arrival,
		})
	}

	it, err := itinerary.New(airports, segments, c.Codeshares)
	if err != nil {
		return nil, fmt.Errorf("invalid itinerary configuration: %w", err)
	}
	return it, nil
}

// Seconds converts a seconds setting to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
