package gameapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/internal/domain/superlative"
	"github.com/guildhub/superlatives/internal/infrastructure/metrics"
	"github.com/guildhub/superlatives/pkg/circuitbreaker"
	"github.com/guildhub/superlatives/pkg/retry"
)

const serviceName = "gameapi"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the game API client.
type ClientConfig struct {
	// BaseURL is the API base URL, e.g. https://api.wynncraft.com/v3
	BaseURL string

	// APIKey is sent as a bearer token. Required.
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimit is the steady request rate per second, RateLimitBurst the bucket size
	RateLimit      float64
	RateLimitBurst int

	// MaxRetries bounds retries after 429 responses
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Circuit breaker settings
	BreakerThreshold uint32
	BreakerTimeout   time.Duration

	// Logger for structured logging
	Logger *slog.Logger

	// Metrics is optional
	Metrics *metrics.Manager

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		APIKey:           apiKey,
		Timeout:          15 * time.Second,
		RateLimit:        2,
		RateLimitBurst:   5,
		MaxRetries:       3,
		RetryBaseDelay:   500 * time.Millisecond,
		RetryMaxDelay:    30 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the game statistics API client. It implements superlative.GameStats.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Manager
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	retrier    *retry.Retrier
	mapper     *Mapper
	now        func() time.Time
}

var _ superlative.GameStats = (*Client)(nil)

// NewClient creates a new game API client. A missing API key is a configuration error.
func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, shared.NewDomainError(serviceName, "NewClient", shared.ErrConfig, "api key is not configured")
	}
	if config.BaseURL == "" {
		return nil, shared.NewDomainError(serviceName, "NewClient", shared.ErrConfig, "base url is not configured")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 1
	}
	if config.RateLimitBurst <= 0 {
		config.RateLimitBurst = 1
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With("component", serviceName),
		metrics:    config.Metrics,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimitBurst),
		mapper:     NewMapper(),
		now:        time.Now,
	}

	c.breaker = circuitbreaker.GameAPIBreaker(
		config.BreakerThreshold,
		config.BreakerTimeout,
		isBreakerFailure,
		func(name string, from, to circuitbreaker.State) {
			c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			c.metrics.SetBreakerState(name, int(to))
		},
	)

	c.retrier = retry.GameAPIRetrier(
		config.MaxRetries+1,
		retry.WithInitialDelay(config.RetryBaseDelay),
		retry.WithMaxDelay(config.RetryMaxDelay),
		retry.WithRetryIf(shared.IsRateLimited),
		retry.WithRetryAfter(shared.RetryAfterHint),
	)

	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GUILD OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetGuildRoster fetches a guild and its members keyed by UUID.
func (c *Client) GetGuildRoster(ctx context.Context, guild string) (*superlative.Roster, error) {
	path := fmt.Sprintf("/guild/%s?identifier=uuid", url.PathEscape(guild))

	dto, err := fetch[GuildDTO](ctx, c, "guild", path)
	if err != nil {
		return nil, fmt.Errorf("get guild %s: %w", guild, err)
	}

	roster, err := c.mapper.RosterFromDTO(dto, c.now())
	if err != nil {
		return nil, &shared.UpstreamError{Service: serviceName, Op: "guild", Status: http.StatusOK, Message: "malformed roster", Err: err}
	}
	return roster, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetPlayerStats fetches a player's account-wide statistics.
func (c *Client) GetPlayerStats(ctx context.Context, uuid string) (*superlative.PlayerStats, error) {
	path := fmt.Sprintf("/player/%s?fullResult", url.PathEscape(uuid))

	dto, err := fetch[PlayerDTO](ctx, c, "player", path)
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", uuid, err)
	}

	stats, err := c.mapper.PlayerStatsFromDTO(dto)
	if err != nil {
		return nil, &shared.UpstreamError{Service: serviceName, Op: "player", Status: http.StatusOK, Message: "malformed player", Err: err}
	}
	return stats, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// fetch performs a GET with rate limiting, circuit breaking and bounded 429
// retries, decoding the body into a fresh T. A Retry-After header sets the
// minimum wait.
func fetch[T any](ctx context.Context, c *Client, op, path string) (*T, error) {
	attempt := 0
	return retry.DoWithData(ctx, c.retrier, func(ctx context.Context) (*T, error) {
		attempt++
		if attempt > 1 {
			c.metrics.IncAPIRetry(op)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		var out T
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.doSingleRequest(ctx, op, path, &out)
		})
		if circuitbreaker.IsRejection(err) {
			return nil, &shared.UpstreamError{
				Service: serviceName,
				Op:      op,
				Status:  http.StatusServiceUnavailable,
				Message: "circuit open",
				Err:     errors.Join(shared.ErrServiceUnavailable, err),
			}
		}
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, op, path string, result interface{}) error {
	fullURL := strings.TrimRight(c.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPIRequest(op, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &shared.UpstreamError{Service: serviceName, Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()
	c.metrics.ObserveAPIRequest(op, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &shared.UpstreamError{Service: serviceName, Op: op, Status: resp.StatusCode, Message: "read response", Err: err}
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		c.logger.Warn("game api rate limited", "op", op, "retry_after", retryAfter)
		return &shared.UpstreamError{
			Service:    serviceName,
			Op:         op,
			Status:     resp.StatusCode,
			Message:    "rate limit exceeded",
			RetryAfter: retryAfter,
		}
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		msg := http.StatusText(resp.StatusCode)
		var apiErr APIErrorDTO
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message() != "" {
			msg = apiErr.Message()
		}
		upErr := &shared.UpstreamError{Service: serviceName, Op: op, Status: resp.StatusCode, Message: msg}
		if resp.StatusCode == http.StatusNotFound {
			upErr.Err = shared.ErrNotFound
		}
		return upErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &shared.UpstreamError{Service: serviceName, Op: op, Status: resp.StatusCode, Message: "malformed json", Err: err}
		}
	}

	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// isBreakerFailure counts transport failures and 5xx responses.
// Client errors and throttling say nothing about upstream health.
func isBreakerFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var up *shared.UpstreamError
	if errors.As(err, &up) {
		return up.Status == 0 || up.Status >= 500
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus describes the client's resilience state.
type ClientStatus struct {
	Breaker     string
	TokensReady float64
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		Breaker:     c.breaker.State().String(),
		TokensReady: c.limiter.Tokens(),
	}
}

// IsHealthy reports whether the breaker lets requests through.
func (c *Client) IsHealthy() bool {
	return !c.breaker.IsOpen()
}
