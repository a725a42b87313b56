package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightmap/pkg/coordinates"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL
	BaseURL string

	// Username and Password enable HTTP basic auth when both are set.
	// Anonymous access works with lower limits.
	Username string
	Password string

	// Timeout bounds every request (default: 10 seconds)
	Timeout time.Duration

	// RequestsPerSecond limits outgoing calls across all users of the
	// client. Zero or negative disables the limiter.
	RequestsPerSecond float64
}

// Client implements Source against the live OpenSky REST API.
// It is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client

	// rateLimiter is nil when limiting is disabled
	rateLimiter *rate.Limiter
}

// NewClient creates a new OpenSky client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:     baseURL,
		username:    cfg.Username,
		password:    cfg.Password,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: limiter,
	}
}

// StatesInBox returns every state vector inside bbox.
func (c *Client) StatesInBox(ctx context.Context, bbox coordinates.BoundingBox) ([]StateVector, error) {
	resp, err := c.Fetch(ctx, &bbox)
	if err != nil {
		return nil, err
	}
	return resp.States, nil
}

// SearchCallsign returns the state vectors whose trimmed callsign contains
// the query, case-insensitively. OpenSky has no callsign query parameter,
// so this pulls the global snapshot and filters it here.
func (c *Client) SearchCallsign(ctx context.Context, callsign string) ([]StateVector, error) {
	query := strings.ToUpper(strings.TrimSpace(callsign))

	resp, err := c.Fetch(ctx, nil)
	if err != nil {
		return nil, err
	}

	matches := make([]StateVector, 0)
	for _, sv := range resp.States {
		cs := strings.ToUpper(strings.TrimSpace(stringAt(sv, idxCallsign)))
		if cs != "" && strings.Contains(cs, query) {
			matches = append(matches, sv)
		}
	}
	return matches, nil
}

// Fetch performs GET /states/all, scoped to bbox when it is non-nil.
//
// Errors are always *RateLimitError or *UnavailableError. Context
// cancellation is reported as an UnavailableError wrapping ctx.Err().
func (c *Client) Fetch(ctx context.Context, bbox *coordinates.BoundingBox) (*Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, &UnavailableError{Message: "Rate limiter wait aborted", Details: err.Error(), Err: err}
		}
	}

	reqURL := c.baseURL + "/states/all"
	if bbox != nil {
		q := url.Values{}
		q.Set("lamin", strconv.FormatFloat(bbox.South, 'f', -1, 64))
		q.Set("lomin", strconv.FormatFloat(bbox.West, 'f', -1, 64))
		q.Set("lamax", strconv.FormatFloat(bbox.North, 'f', -1, 64))
		q.Set("lomax", strconv.FormatFloat(bbox.East, 'f', -1, 64))
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &UnavailableError{Message: "Failed to create OpenSky request", Details: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Message: "Failed to fetch data from OpenSky", Details: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Message:    "Authentication failed with OpenSky Network",
			Details:    "Check OPENSKY_USER and OPENSKY_PASS",
		}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Message:    "Failed to fetch data from OpenSky",
			Details:    string(body),
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &UnavailableError{
			StatusCode: resp.StatusCode,
			Message:    "Failed to parse OpenSky response",
			Details:    err.Error(),
			Err:        fmt.Errorf("decode states: %w", err),
		}
	}
	if out.States == nil {
		out.States = []StateVector{}
	}

	return &out, nil
}
