package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

// RateLimitedLLM wraps an LLM client with rate limiting, retries and a circuit breaker
type RateLimitedLLM struct {
	llm         llms.Model
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	maxRetries  int
	backoffMin  time.Duration
	backoffMax  time.Duration
}

// RateLimitConfig holds configuration for rate limiting and retries
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	// If 0 or negative, no rate limiting is applied
	RequestsPerMinute float64

	// MaxRetries is the maximum number of retry attempts
	// If 0 or negative, no retries are attempted
	MaxRetries int

	// BackoffMaxWait is the maximum wait time between retries
	// Defaults to 30 seconds if not specified
	BackoffMaxWait time.Duration

	// BreakerMaxFailures opens the circuit after that many consecutive failed calls.
	// If 0, the circuit breaker is disabled
	BreakerMaxFailures uint32

	// BreakerTimeout is how long the circuit stays open before probing again
	BreakerTimeout time.Duration
}

// NewRateLimitedLLM creates a new rate-limited LLM client
func NewRateLimitedLLM(llm llms.Model, config RateLimitConfig) *RateLimitedLLM {
	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		// Convert requests per minute to requests per second
		rps := rate.Limit(config.RequestsPerMinute / 60.0)
		limiter = rate.NewLimiter(rps, 1)
	}

	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	backoffMax := config.BackoffMaxWait
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	var breaker *gobreaker.CircuitBreaker
	if config.BreakerMaxFailures > 0 {
		maxFailures := config.BreakerMaxFailures
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: 1,
			Timeout:     config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: isBreakerSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("Circuit breaker %s changed from %s to %s", name, from, to)
			},
		})
	}

	return &RateLimitedLLM{
		llm:         llm,
		rateLimiter: limiter,
		breaker:     breaker,
		maxRetries:  maxRetries,
		backoffMin:  1 * time.Second,
		backoffMax:  backoffMax,
	}
}

// isBreakerSuccess reports whether err leaves the upstream looking healthy.
// Client-side rejections (quota, rate limit, bad request) do not trip the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if status, ok := upstreamStatus(err); ok {
		return status < http.StatusInternalServerError
	}
	return false
}

// isRetryable reports whether another attempt may succeed. Gateway replies have
// already been retried at the HTTP layer.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return false
	}
	if status, ok := upstreamStatus(err); ok {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	return true
}

func (r *RateLimitedLLM) do(ctx context.Context, fn func() error) error {
	if r.rateLimiter != nil {
		if err := r.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	withRetries := func() error {
		var lastErr error
		attempt := 0

		for {
			err := fn()
			if err == nil {
				return nil
			}

			if attempt >= r.maxRetries || !isRetryable(err) {
				if lastErr != nil {
					return fmt.Errorf("all retry attempts failed, last error: %w", err)
				}
				return err
			}

			// Calculate exponential backoff with jitter
			backoff := r.backoffMin * time.Duration(1<<uint(attempt))
			if backoff > r.backoffMax {
				backoff = r.backoffMax
			}
			// Add jitter by randomly adjusting +/- 20%
			jitter := time.Duration(float64(backoff) * (0.8 + 0.4*rand.Float64()))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
				attempt++
				lastErr = err
			}
		}
	}

	if r.breaker == nil {
		return withRetries()
	}
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, withRetries()
	})
	return err
}

// Call implements the llms.Model interface
func (r *RateLimitedLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	var response string
	err := r.do(ctx, func() error {
		var err error
		response, err = r.llm.Call(ctx, prompt, options...)
		return err
	})
	return response, err
}

// GenerateContent implements the LLM interface with rate limiting and retries
func (r *RateLimitedLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var resp *llms.ContentResponse
	err := r.do(ctx, func() error {
		var err error
		resp, err = r.llm.GenerateContent(ctx, messages, options...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
