package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/yegors/flightwatch/internal/geo"
	"github.com/yegors/flightwatch/internal/metrics"
	"github.com/yegors/flightwatch/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.open-meteo.com"

	providerName = "open-meteo"
)

var errNoCurrentWeather = errors.New("response has no current_weather block")

// Config configures the weather client and its cache
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
	CacheSize  int
}

// Client handles HTTP requests to the Open-Meteo forecast API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new weather API client
func NewClient(config Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log.Named("weather-client"),
		metrics:    m,
	}
}

// Current fetches current conditions at a coordinate. zone is passed to the
// provider so the observation time comes back in airport-local time.
func (c *Client) Current(ctx context.Context, airport string, at geo.Coordinate, zone string) (*Brief, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", at.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", at.Lon))
	q.Set("current_weather", "true")
	if zone == "" {
		zone = "auto"
	}
	q.Set("timezone", zone)
	urlStr := c.config.BaseURL + "/v1/forecast?" + q.Encode()

	var resp openMeteoResponse
	if err := c.fetchWithRetry(ctx, urlStr, airport, &resp); err != nil {
		return nil, err
	}
	if resp.CurrentWeather == nil {
		return nil, errNoCurrentWeather
	}

	return &Brief{
		Airport:   airport,
		TempC:     resp.CurrentWeather.Temperature,
		WindKph:   resp.CurrentWeather.Windspeed,
		Time:      resp.CurrentWeather.Time,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// fetchWithRetry performs HTTP request with retry logic and exponential backoff
func (c *Client) fetchWithRetry(ctx context.Context, urlStr, airport string, target interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("Retrying weather data fetch",
				logger.String("airport", airport),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.fetchOnce(ctx, urlStr, target)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Successfully fetched weather data after retries",
					logger.String("airport", airport),
					logger.Int("attempts_needed", attempt+1))
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Weather API request failed, may retry",
			logger.String("airport", airport),
			logger.Error(lastErr),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.MaxRetries+1))
	}

	return lastErr
}

func (c *Client) fetchOnce(ctx context.Context, urlStr string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(providerName, "current", metrics.OutcomeNetwork, time.Since(start))
		return fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.ObserveRequest(providerName, "current", metrics.OutcomeStatus, time.Since(start))
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		c.metrics.ObserveRequest(providerName, "current", metrics.OutcomeParse, time.Since(start))
		return fmt.Errorf("error decoding weather data: %w", err)
	}

	c.metrics.ObserveRequest(providerName, "current", metrics.OutcomeSuccess, time.Since(start))
	return nil
}
