package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/yegors/flightwatch/internal/metrics"
	"github.com/yegors/flightwatch/pkg/logger"
)

const (
	DefaultBaseURL  = "https://opensky-network.org/api"
	DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	providerName = "opensky"
)

// ClientConfig configures the OpenSky client
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration

	// CredentialsPath points to a JSON file holding either an access_token
	// or a client_id/client_secret pair. Empty means anonymous access.
	CredentialsPath string
}

// credentials is the on-disk credentials file
type credentials struct {
	AccessToken  string `json:"access_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
}

// Client fetches state vectors inside a bounding box
type Client struct {
	httpClient    *http.Client
	baseURL       string
	authenticated bool
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

// NewClient creates a new OpenSky client. A configured but unreadable
// credentials file is an error; a missing one falls back to anonymous
// access with a warning.
func NewClient(cfg ClientConfig, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		logger:     log.Named("opensky-cli"),
		metrics:    m,
	}

	if cfg.CredentialsPath == "" {
		return c, nil
	}

	b, err := os.ReadFile(cfg.CredentialsPath)
	if os.IsNotExist(err) {
		c.logger.Warn("OpenSky credentials file not found - proceeding as anonymous (rate limits may apply)",
			logger.String("path", cfg.CredentialsPath))
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read opensky credentials: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return nil, fmt.Errorf("invalid opensky credentials JSON: %w", err)
	}

	// Token fetches use the same timeout as data requests
	base := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	switch {
	case creds.AccessToken != "":
		c.httpClient = oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken}))
	case creds.ClientID != "" && creds.ClientSecret != "":
		tokenURL := creds.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
		}
		c.httpClient = cc.Client(base)
	default:
		return nil, fmt.Errorf("opensky credentials must contain access_token or client_id+client_secret")
	}
	c.httpClient.Timeout = cfg.Timeout
	c.authenticated = true

	c.logger.Info("OpenSky client authenticated", logger.String("path", cfg.CredentialsPath))
	return c, nil
}

// Authenticated reports whether requests carry a bearer token
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// States fetches all state vectors inside the box. A null states array is
// returned as an empty slice.
func (c *Client) States(ctx context.Context, box BBox) ([]StateVector, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	urlStr := fmt.Sprintf("%s/states/all?lamin=%f&lomin=%f&lamax=%f&lomax=%f",
		c.baseURL, box.Lamin, box.Lomin, box.Lamax, box.Lomax)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSky request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching OpenSky state vectors", logger.String("url", urlStr))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(providerName, "states", metrics.OutcomeNetwork, time.Since(start))
		return nil, fmt.Errorf("failed to execute opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.ObserveRequest(providerName, "states", metrics.OutcomeStatus, time.Since(start))
		c.logger.Warn("Unexpected OpenSky status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return nil, fmt.Errorf("unexpected opensky status code: %d", resp.StatusCode)
	}

	var osResp struct {
		Time   int64           `json:"time"`
		States [][]interface{} `json:"states"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&osResp); err != nil {
		c.metrics.ObserveRequest(providerName, "states", metrics.OutcomeParse, time.Since(start))
		return nil, fmt.Errorf("failed to parse opensky JSON: %w", err)
	}

	states := make([]StateVector, 0, len(osResp.States))
	for _, row := range osResp.States {
		states = append(states, parseState(row))
	}

	outcome := metrics.OutcomeSuccess
	if len(states) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	c.metrics.ObserveRequest(providerName, "states", outcome, time.Since(start))

	c.logger.Debug("Fetched OpenSky state vectors", logger.Int("count", len(states)))
	return states, nil
}
