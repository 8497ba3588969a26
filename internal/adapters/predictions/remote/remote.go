// Package remote queries a prediction model server over HTTP.
//
// The server answers GET {base}/v1/predictions/{variant}/{gameweek}/{player}
// with {"points": n}. 404 means the player is unknown for the gameweek and
// 503 means the variant has no model.
package remote

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

	"github.com/okian/fplcoach/internal/domain/prediction"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultRateLimit   = 50
	maxErrorBody       = 512
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Client implements prediction.Provider against a remote model server.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
}

type pointsResponse struct {
	Points *float64 `json:"points"`
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q must be http or https", baseURL)
	}

	c := &Client{
		base:       u,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Predict fetches one prediction. Waiting for the rate limiter honours ctx.
func (c *Client) Predict(ctx context.Context, playerID, gameweek int, variant string) (float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("remote rate limit: %w", err)
		}
	}

	endpoint := c.base.JoinPath("v1", "predictions", variant, strconv.Itoa(gameweek), strconv.Itoa(playerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build remote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("remote predict player %d: %w", playerID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return 0, fmt.Errorf("%w: player %d gameweek %d", prediction.ErrPlayerNotFound, playerID, gameweek)
	case http.StatusServiceUnavailable:
		return 0, fmt.Errorf("%w: variant %q", prediction.ErrModelUnavailable, variant)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, fmt.Errorf("remote predict player %d: status %d: %s", playerID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out pointsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode remote prediction: %w", err)
	}
	if out.Points == nil {
		return 0, fmt.Errorf("decode remote prediction: missing points for player %d", playerID)
	}
	return *out.Points, nil
}
