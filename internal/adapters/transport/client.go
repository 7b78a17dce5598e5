package transport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/merchantkit/ogone-service/internal/adapters/ports"
	"github.com/merchantkit/ogone-service/pkg/resilience"
)

// Config contains retry configuration for the resilient client
type Config struct {
	// MaxRetries is the number of additional attempts after the first
	MaxRetries int

	// RetryableErrors are substrings of transport errors that trigger a retry
	RetryableErrors []string
}

// DefaultConfig returns sensible retry defaults for a payment gateway:
// transport errors are worth retrying, anything the processor answered is not.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		RetryableErrors: []string{"timeout", "connection", "temporary"},
	}
}

// Client is a ports.HTTPClient that wraps an inner client with exponential
// backoff retries and a circuit breaker. Retry and breaker policy live here so
// gateway adapters stay a single request/response exchange.
type Client struct {
	inner          ports.HTTPClient
	config         *Config
	circuitBreaker *CircuitBreaker
	backoff        resilience.BackoffStrategy
	logger         *zap.Logger
}

// NewClient wraps inner with the retry and circuit breaker policy
func NewClient(inner ports.HTTPClient, config *Config, logger *zap.Logger) *Client {
	return &Client{
		inner:          inner,
		config:         config,
		circuitBreaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		backoff:        resilience.DefaultExponentialBackoff(),
		logger:         logger,
	}
}

// Do sends the request, retrying retryable transport errors with backoff.
// Requests built by http.NewRequest from an in-memory reader carry GetBody,
// which is required for anything with a body to be retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	err := c.circuitBreaker.Call(func() error {
		var lastErr error
		for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := c.backoff.NextDelay(attempt - 1)
				c.logger.Info("Retrying gateway request",
					zap.Int("attempt", attempt),
					zap.Int("max_retries", c.config.MaxRetries),
					zap.Duration("backoff_delay", delay),
				)
				select {
				case <-req.Context().Done():
					return fmt.Errorf("retry cancelled: %w", req.Context().Err())
				case <-time.After(delay):
				}

				// Rewind the body for the new attempt
				if req.GetBody != nil {
					body, err := req.GetBody()
					if err != nil {
						return fmt.Errorf("failed to rewind request body: %w", err)
					}
					req.Body = body
				}
			}

			r, err := c.inner.Do(req)
			if err != nil {
				lastErr = err
				if c.isRetryable(err) && attempt < c.config.MaxRetries {
					c.logger.Warn("Retryable transport error",
						zap.Error(err),
						zap.Int("attempt", attempt),
					)
					continue
				}
				return err
			}

			resp = r
			return nil
		}

		return fmt.Errorf("failed after %d retries: %w", c.config.MaxRetries, lastErr)
	})

	if err != nil {
		if err == ErrCircuitOpen {
			c.logger.Warn("Circuit breaker is open, rejecting gateway request",
				zap.String("circuit_state", c.circuitBreaker.State().String()),
			)
		}
		return nil, err
	}

	return resp, nil
}

// isRetryable determines if an error should trigger a retry
func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, retryable := range c.config.RetryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}
