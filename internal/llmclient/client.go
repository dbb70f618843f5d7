package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/archon-run/archon/internal/apperrors"
	"github.com/archon-run/archon/internal/backoff"
	"github.com/archon-run/archon/internal/ratelimit"
)

// Client wraps a Provider with rate limiting and retry. It is the only
// thing the reasoning loop talks to; the underlying Provider and its SDK
// are never referenced outside this package and internal/llmclient/providers.
type Client struct {
	provider   Provider
	bucket     *ratelimit.Bucket
	maxRetries int
	policy     backoff.Policy

	totalInputTokens  int
	totalOutputTokens int
}

// Config configures the retry/rate-limit envelope around a Provider.
type Config struct {
	RateLimitRPM int
	MaxRetries   int
	Policy       backoff.Policy
}

// New wraps provider with the given Config.
func New(provider Provider, cfg Config) *Client {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	policy := cfg.Policy
	if policy == (backoff.Policy{}) {
		policy = backoff.DefaultPolicy()
	}
	return &Client{
		provider:   provider,
		bucket:     ratelimit.NewBucket(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM}),
		maxRetries: retries,
		policy:     policy,
	}
}

// Complete issues req against the wrapped provider, retrying transient
// failures with exponential backoff and waiting on the rate limiter
// before every attempt.
func (c *Client) Complete(ctx context.Context, req Request) (Completion, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return Completion{}, apperrors.Wrap(apperrors.KindCancellation, "llmclient.Complete", "context cancelled", err)
		}

		if !c.bucket.Wait(30 * time.Second) {
			lastErr = apperrors.New(apperrors.KindLLMTransient, "llmclient.Complete", "rate limit wait exceeded 30s")
			continue
		}

		completion, err := c.provider.Complete(ctx, req)
		if err == nil {
			c.totalInputTokens += completion.Usage.InputTokens
			c.totalOutputTokens += completion.Usage.OutputTokens
			return completion, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return Completion{}, apperrors.Wrap(apperrors.KindLLMPermanent, "llmclient.Complete", "permanent provider error", err)
		}
		if attempt > c.maxRetries {
			break
		}

		delay := backoff.Compute(c.policy, attempt)
		select {
		case <-ctx.Done():
			return Completion{}, apperrors.Wrap(apperrors.KindCancellation, "llmclient.Complete", "context cancelled during backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
	return Completion{}, apperrors.Wrap(apperrors.KindLLMTransient, "llmclient.Complete", fmt.Sprintf("exhausted %d retries", c.maxRetries), lastErr)
}

// Usage returns cumulative token counts across every Complete call made
// through this Client.
func (c *Client) Usage() Usage {
	return Usage{InputTokens: c.totalInputTokens, OutputTokens: c.totalOutputTokens}
}

func isRetryable(err error) bool {
	if re, ok := err.(RetryableError); ok {
		return re.Retryable()
	}
	return apperrors.IsRetryable(err)
}
