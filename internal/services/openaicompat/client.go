package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"winnow/internal/logging"
)

const (
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

// Config captures the runtime settings for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client wraps the OpenAI chat completion API with retry logic.
type Client struct {
	api    *openai.Client
	logger *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "openai")
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client for the configured endpoint.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai client: api key required")
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientConfig.BaseURL = base
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	client := &Client{
		api:              openai.NewClientWithConfig(clientConfig),
		logger:           logging.NewNop(),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name identifies the provider in logs and health output.
func (c *Client) Name() string { return "openai" }

// Chat issues a single system+user exchange against the given model.
func (c *Client) Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	model = strings.TrimSpace(model)
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if model == "" {
		return "", errors.New("openai chat: model required")
	}
	if systemPrompt == "" {
		return "", errors.New("openai chat: system prompt required")
	}
	if userPrompt == "" {
		return "", errors.New("openai chat: user prompt required")
	}

	request := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		// The encoder drops a literal 0 via omitempty, which would leave the
		// provider default in effect.
		Temperature: math.SmallestNonzeroFloat32,
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.backoffDelay(attempt - 1)
			c.logger.Debug("retrying request",
				logging.String("model", model),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, request)
		if err != nil {
			if !retryableError(err) {
				return "", fmt.Errorf("openai chat: %w", err)
			}
			lastErr = err
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = errors.New("empty choices")
			continue
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			lastErr = fmt.Errorf("empty content (finish_reason=%q)", resp.Choices[0].FinishReason)
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("openai chat: failed after %d attempts: %w", attempts, lastErr)
}

// HealthCheck verifies the endpoint accepts the configured credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("openai health: %w", err)
	}
	return nil
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func retryableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= http.StatusInternalServerError:
		return true
	}
	return false
}

func (c *Client) backoffDelay(retry int) time.Duration {
	base := c.retryBaseDelay
	if base < 0 {
		base = defaultRetryBaseDelay
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if base <= 0 {
		return 0
	}

	delay := base
	for i := 1; i < retry; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
