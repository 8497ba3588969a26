package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/types"
	"github.com/okian/fplcoach/pkg/logger"
)

// Outcome classes for a single call.
const (
	outcomeSuccess     = "success"
	outcomeClientError = "client_error"
	outcomeServerError = "server_error"
	outcomeFailed      = "failed"
)

// HTTPClient wraps http.Client with a base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client with the given per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return c.client.Do(req)
}

// call posts body to path and decodes a 2xx answer into out.
func (c *HTTPClient) call(ctx context.Context, path string, body, out interface{}) (string, error) {
	resp, err := c.Post(ctx, path, body)
	if err != nil {
		return outcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeFailed, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return outcomeServerError, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, data)
	case resp.StatusCode >= http.StatusBadRequest:
		return outcomeClientError, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return outcomeFailed, fmt.Errorf("%s: decode: %w", path, err)
		}
	}
	return outcomeSuccess, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := client.Get(ctx, routeHealth)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The health route serves Prometheus metrics; any 200 is healthy.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// fetchPool reads the best predicted players per position.
func fetchPool(ctx context.Context, client *HTTPClient, config *Config) (Pool, error) {
	pool := make(Pool, len(model.Positions))
	for _, pos := range model.Positions {
		q := url.Values{}
		q.Set("gameweek", strconv.Itoa(config.Gameweek))
		q.Set("position", pos.String())
		q.Set("limit", strconv.Itoa(PoolPerPosition))
		if config.Tier != "" {
			q.Set("tier", config.Tier)
		}

		resp, err := client.Get(ctx, routeTop+"?"+q.Encode())
		if err != nil {
			return nil, fmt.Errorf("fetch %s pool: %w", pos, err)
		}
		var players []types.TopPlayer
		err = func() error {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("fetch %s pool: status %d: %s", pos, resp.StatusCode, body)
			}
			return json.NewDecoder(resp.Body).Decode(&players)
		}()
		if err != nil {
			return nil, err
		}
		pool[pos] = players
		logger.Get().Debug(ctx, "fetched pool", logger.String("position", pos.String()), logger.Int("players", len(players)))
	}
	return pool, nil
}

// squadResult is what the three endpoints returned for one squad.
type squadResult struct {
	index     int
	rate      *types.RateResponse
	transfers []types.TransferResponse
}

// submitSquads runs every squad through the rate, transfer and captain
// endpoints using a worker pool.
func submitSquads(ctx context.Context, client *HTTPClient, config *Config, squads [][]Member, stats *Stats) []squadResult {
	logger.Get().Info(ctx, "submitting squads", logger.Int("squads", len(squads)), logger.Int("workers", config.Workers))

	var (
		mu      sync.Mutex
		results = make([]squadResult, 0, len(squads))
		wg      sync.WaitGroup
		done    int
		last    = time.Now()
	)

	record := func(route, outcome string, latency time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		ep := stats.Endpoints[route]
		ep.Requests++
		ep.Latencies = append(ep.Latencies, latency)
		switch outcome {
		case outcomeSuccess:
			ep.Successful++
		case outcomeClientError:
			ep.ClientError++
		case outcomeServerError:
			ep.ServerError++
		default:
			ep.Failed++
		}
		if err != nil && config.Verbose {
			logger.Get().Warn(ctx, "request failed", logger.String("route", route), logger.Error(err))
		}
	}

	timed := func(route string, body, out interface{}) bool {
		start := time.Now()
		outcome, err := client.call(ctx, route, body, out)
		record(route, outcome, time.Since(start), err)
		return outcome == outcomeSuccess
	}

	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				res := squadResult{index: idx}
				base := SquadRequest{Team: squads[idx], Gameweek: config.Gameweek, Tier: config.Tier}

				var rate types.RateResponse
				if timed(routeRate, base, &rate) {
					res.rate = &rate
				}

				withBudget := base
				budget := config.Budget
				withBudget.Budget = &budget
				var transfers []types.TransferResponse
				if timed(routeTransfers, withBudget, &transfers) {
					res.transfers = transfers
				}

				timed(routeCaptain, base, nil)

				mu.Lock()
				results = append(results, res)
				done++
				if time.Since(last) >= ProgressInterval {
					last = time.Now()
					logger.Get().Info(ctx, "progress", logger.Int("done", done), logger.Int("total", len(squads)))
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range squads {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()
	return results
}
