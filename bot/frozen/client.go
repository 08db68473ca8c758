package frozen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thertxnetworktwo/toolkit/core/logger"
)

const (
	defaultParallelism    = 4
	defaultTimeoutSeconds = 15
)

// Config describes the external status service.
type Config struct {
	BaseURL        string `yaml:"base_url" envconfig:"FROZEN_BASE_URL"`
	Token          string `yaml:"token" envconfig:"FROZEN_TOKEN"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"FROZEN_TIMEOUT_SECONDS"`
	Parallelism    int    `yaml:"parallelism" envconfig:"FROZEN_PARALLELISM"`
}

// Normalize fills defaults and validates the parts that cannot default.
func (c *Config) Normalize() error {
	if c.BaseURL == "" {
		return fmt.Errorf("frozen: base_url is required")
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	return nil
}

// Timeout returns the per-request timeout as a duration.
func (c Config) Timeout() time.Duration {
	secs := c.TimeoutSeconds
	if secs <= 0 {
		secs = defaultTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// Client is the HTTP Checker. One request per number, fan-out bounded by
// Config.Parallelism, verdicts cached per (channel, number).
type Client struct {
	cfg   Config
	http  *http.Client
	cache Cache
	nowFn func() time.Time
}

// NewClient builds a Client. cache may be nil, then every number hits the
// service.
func NewClient(cfg Config, cache Cache, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	return &Client{cfg: cfg, http: httpClient, cache: cache, nowFn: time.Now}
}

type checkRequest struct {
	Number  string `json:"number"`
	Channel string `json:"channel"`
}

type checkResponse struct {
	Frozen bool   `json:"frozen"`
	Reason string `json:"reason"`
}

// Check resolves every number, consulting the cache first. Results come back
// in input order. A single failed lookup fails the whole batch so the caller
// never reports partial counts as complete.
func (c *Client) Check(ctx context.Context, numbers []string, channelRef string) ([]Result, error) {
	results := make([]Result, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)

	for i, number := range numbers {
		i, number := i, number
		g.Go(func() error {
			res, err := c.checkOne(gctx, number, channelRef)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info(ctx, "frozen", "batch.checked",
		slog.String("channel", channelRef),
		slog.Int("total", len(numbers)),
	)
	return results, nil
}

func (c *Client) checkOne(ctx context.Context, number, channelRef string) (Result, error) {
	if c.cache != nil {
		cached, err := c.cache.Lookup(ctx, channelRef, number)
		if err != nil {
			logger.Warn(ctx, "frozen", "cache.lookup_failed",
				slog.String("err", err.Error()),
			)
		} else if cached != nil {
			return *cached, nil
		}
	}

	res, err := c.query(ctx, number, channelRef)
	if err != nil {
		return Result{}, err
	}

	if c.cache != nil {
		if err := c.cache.Store(ctx, channelRef, res); err != nil {
			// a stale cache only costs a repeat query next time
			logger.Warn(ctx, "frozen", "cache.store_failed",
				slog.String("err", err.Error()),
			)
		}
	}
	return res, nil
}

func (c *Client) query(ctx context.Context, number, channelRef string) (Result, error) {
	body, err := json.Marshal(checkRequest{Number: number, Channel: channelRef})
	if err != nil {
		return Result{}, fmt.Errorf("frozen: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/check", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("frozen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("frozen: check %s: %w", number, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
		return Result{}, fmt.Errorf("frozen: check %s: unexpected status %d", number, resp.StatusCode)
	}

	var decoded checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("frozen: decode response: %w", err)
	}

	return Result{
		Number:    number,
		Frozen:    decoded.Frozen,
		Reason:    decoded.Reason,
		CheckedAt: c.nowFn(),
	}, nil
}
