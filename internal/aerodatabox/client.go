package aerodatabox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/yegors/flightwatch/internal/metrics"
	"github.com/yegors/flightwatch/pkg/logger"
)

const (
	DefaultBaseURL = "https://aerodatabox.p.rapidapi.com"
	DefaultAPIHost = "aerodatabox.p.rapidapi.com"

	providerName = "aerodatabox"
)

// ClientConfig configures the AeroDataBox client
type ClientConfig struct {
	BaseURL string
	APIHost string
	APIKey  string
	Timeout time.Duration
}

// Client performs single requests against the detail and search endpoints.
// It does no fallback of its own; see Resolver.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiHost    string
	apiKey     string
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new AeroDataBox client
func NewClient(cfg ClientConfig, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiHost:    cfg.APIHost,
		apiKey:     cfg.APIKey,
		logger:     log.Named("aerodatabox-cli"),
		metrics:    m,
	}
}

// HasCredentials reports whether an API key is configured
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// FlightByNumber queries the by-number endpoint with the given scheme and
// returns the first flight of the response. The raw body is returned
// alongside so callers can pass it through unchanged.
func (c *Client) FlightByNumber(ctx context.Context, designator, date string, scheme Scheme) (*Flight, []byte, int, error) {
	urlStr := fmt.Sprintf("%s/flights/number/%s/%s?withLocation=true&withCodeshares=true&searchBy=%s",
		c.baseURL, url.PathEscape(designator), url.PathEscape(date), scheme)

	call := "number-" + string(scheme)
	status, body, err := c.get(ctx, call, urlStr)
	if err != nil {
		return nil, body, status, err
	}

	flights, err := parseFlights(body)
	if err != nil {
		c.observe(call, err)
		return nil, body, status, err
	}

	c.logger.Debug("Resolved flight by number",
		logger.String("designator", designator),
		logger.String("scheme", string(scheme)),
		logger.String("number", flights[0].Number),
		logger.Int("flight_count", len(flights)))
	return &flights[0], body, status, nil
}

// SearchTerm queries the free-text search endpoint. Malformed JSON is
// reported as ErrParse; callers treat that as "no candidates".
func (c *Client) SearchTerm(ctx context.Context, term string) ([]Candidate, []byte, int, error) {
	urlStr := fmt.Sprintf("%s/flights/search/term?q=%s", c.baseURL, url.QueryEscape(term))

	status, body, err := c.get(ctx, "search", urlStr)
	if err != nil {
		return nil, body, status, err
	}

	candidates, err := parseCandidates(body)
	if err != nil {
		c.observe("search", err)
		return nil, body, status, err
	}
	if len(candidates) == 0 {
		c.observe("search", ErrEmptyBody)
		return nil, body, status, ErrEmptyBody
	}

	c.logger.Debug("Search returned candidates",
		logger.String("term", term),
		logger.Int("candidate_count", len(candidates)))
	return candidates, body, status, nil
}

// get performs one authenticated GET. A non-2xx status, a transport error
// or an empty body is an error; the status is returned in every case.
func (c *Client) get(ctx context.Context, call, urlStr string) (int, []byte, error) {
	if !c.HasCredentials() {
		return 0, nil, ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.apiHost)

	c.logger.Debug("Fetching AeroDataBox data",
		logger.String("call", call),
		logger.String("url", urlStr))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(providerName, call, metrics.OutcomeNetwork, time.Since(start))
		c.logger.Warn("AeroDataBox request failed", logger.String("call", call), logger.Error(err))
		return 0, nil, &ProviderError{Call: call, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(providerName, call, metrics.OutcomeNetwork, time.Since(start))
		return resp.StatusCode, nil, &ProviderError{Call: call, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ObserveRequest(providerName, call, metrics.OutcomeStatus, time.Since(start))
		c.logger.Debug("AeroDataBox returned non-success status",
			logger.String("call", call),
			logger.Int("status_code", resp.StatusCode))
		return resp.StatusCode, body, &ProviderError{Call: call, Status: resp.StatusCode}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		c.metrics.ObserveRequest(providerName, call, metrics.OutcomeEmpty, time.Since(start))
		return resp.StatusCode, body, ErrEmptyBody
	}

	c.metrics.ObserveRequest(providerName, call, metrics.OutcomeSuccess, time.Since(start))
	return resp.StatusCode, body, nil
}

// observe records a post-transport failure (parse or empty payload)
func (c *Client) observe(call string, err error) {
	outcome := metrics.OutcomeParse
	if errors.Is(err, ErrEmptyBody) {
		outcome = metrics.OutcomeEmpty
	}
	c.metrics.ObserveRequest(providerName, call+"-decode", outcome, 0)
}
