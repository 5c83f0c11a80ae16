package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/guildhub/superlatives/internal/domain/shared"
	"github.com/guildhub/superlatives/pkg/retry"
)

const serviceName = "discord"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the webhook client.
type ClientConfig struct {
	// BaseURL is the REST API base URL (default: https://discord.com/api/v10)
	BaseURL string

	// AppID is the application id used in webhook paths
	AppID string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// MaxRetries bounds retries after 429 responses
	MaxRetries int

	// Logger for structured logging
	Logger *slog.Logger

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(appID string) ClientConfig {
	return ClientConfig{
		BaseURL:    "https://discord.com/api/v10",
		AppID:      appID,
		Timeout:    10 * time.Second,
		MaxRetries: 5,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client edits deferred interaction responses and posts followups.
// Interaction webhooks authenticate through the interaction token.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	retrier    *retry.Retrier
}

// NewClient creates a new webhook client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://discord.com/api/v10"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With("component", serviceName),
		// interaction webhooks allow 5 requests per 2 seconds per token
		limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 5),
		retrier: retry.WebhookRetrier(
			retry.WithMaxAttempts(config.MaxRetries+1),
			retry.WithRetryIf(shared.IsRateLimited),
			retry.WithRetryAfter(shared.RetryAfterHint),
		),
	}
}

// EditOriginal replaces the deferred response message.
func (c *Client) EditOriginal(ctx context.Context, token string, payload MessagePayload) error {
	path := fmt.Sprintf("/webhooks/%s/%s/messages/@original", c.config.AppID, token)
	return c.call(ctx, "edit_original", http.MethodPatch, path, payload)
}

// Followup posts an additional message to the interaction.
func (c *Client) Followup(ctx context.Context, token string, payload MessagePayload) error {
	path := fmt.Sprintf("/webhooks/%s/%s", c.config.AppID, token)
	return c.call(ctx, "followup", http.MethodPost, path, payload)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) call(ctx context.Context, op, method, path string, body interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return c.doSingleRequest(ctx, op, method, path, encoded)
	})
}

func (c *Client) doSingleRequest(ctx context.Context, op, method, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.config.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &shared.UpstreamError{Service: serviceName, Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := rateLimitDelay(resp.Header, respBody)
		c.logger.Warn("webhook rate limited", "op", op, "retry_after", retryAfter)
		return &shared.UpstreamError{
			Service:    serviceName,
			Op:         op,
			Status:     resp.StatusCode,
			Message:    "rate limit exceeded",
			RetryAfter: retryAfter,
		}
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		msg := http.StatusText(resp.StatusCode)
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &shared.UpstreamError{Service: serviceName, Op: op, Status: resp.StatusCode, Message: msg}
	}

	return nil
}

// rateLimitDelay prefers the JSON retry_after (seconds, fractional) over the header.
func rateLimitDelay(h http.Header, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return 0
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Progress reports intermediate status by editing the deferred response.
type Progress struct {
	client *Client
	token  string
}

// NewProgress binds a reporter to one interaction token.
func (c *Client) NewProgress(token string) *Progress {
	return &Progress{client: c, token: token}
}

// Update shows status text in place of the pending response.
func (p *Progress) Update(ctx context.Context, status string) error {
	return p.client.EditOriginal(ctx, p.token, MessagePayload{Content: status})
}
