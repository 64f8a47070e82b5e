package assignor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig holds retry settings for claim writes
type RetryConfig struct {
	Enabled    bool `json:"enabled"`     // Whether retry is enabled
	MaxRetries int  `json:"max_retries"` // Maximum number of retry attempts (default: 3)
	InitialMs  int  `json:"initial_ms"`  // Initial backoff delay in milliseconds (default: 500)
	MaxMs      int  `json:"max_ms"`      // Maximum backoff delay in milliseconds (default: 10000)
}

// DefaultRetryConfig returns the retry settings used by the self-hosted receiver.
// Enabled with 3 retries, starting at 500ms and capped at 10 seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:    true,
		MaxRetries: 3,
		InitialMs:  500,
		MaxMs:      10000,
	}
}

// RetryingClaimsWriter wraps a ClaimsWriter with exponential backoff.
// Only errors accepted by the retryable classifier are retried.
// It is safe for concurrent use by multiple goroutines.
type RetryingClaimsWriter struct {
	writer    ClaimsWriter
	config    RetryConfig
	retryable func(error) bool
	logger    logrus.FieldLogger
}

// Ensure RetryingClaimsWriter implements ClaimsWriter interface
var _ ClaimsWriter = (*RetryingClaimsWriter)(nil)

// NewRetryingClaimsWriter creates a writer that retries transient failures of writer.
// A nil retryable treats every error except context cancellation as transient.
func NewRetryingClaimsWriter(writer ClaimsWriter, config RetryConfig, retryable func(error) bool, logger logrus.FieldLogger) *RetryingClaimsWriter {
	if retryable == nil {
		retryable = func(error) bool { return true }
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetryingClaimsWriter{
		writer:    writer,
		config:    config,
		retryable: retryable,
		logger:    logger,
	}
}

// GrantAdmin attempts the write with retries.
//
// The backoff schedule is:
//   - Attempt 1: immediate
//   - Attempt 2: wait InitialMs
//   - Attempt 3: wait InitialMs * 2
//   - Attempt 4: wait InitialMs * 4
//   - (capped at MaxMs)
func (r *RetryingClaimsWriter) GrantAdmin(ctx context.Context, uid string) error {
	if !r.config.Enabled {
		return r.writer.GrantAdmin(ctx, uid)
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return contextError(err, lastErr)
		}

		if attempt > 0 {
			backoff := calculateBackoff(attempt-1, r.config.InitialMs, r.config.MaxMs)
			r.logger.WithFields(logrus.Fields{
				"uid":     uid,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Warnf("retrying admin claim write: %v", lastErr)

			select {
			case <-ctx.Done():
				return contextError(ctx.Err(), lastErr)
			case <-time.After(backoff):
			}
		}

		lastErr = r.writer.GrantAdmin(ctx, uid)
		if lastErr == nil {
			return nil
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if !r.retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("gave up after %d retries: %w", r.config.MaxRetries, lastErr)
}

func contextError(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last error: %v)", ctxErr, lastErr)
}

// calculateBackoff returns the backoff duration for a given retry attempt.
// Uses exponential backoff: initialMs * 2^attempt, capped at maxMs.
func calculateBackoff(attempt, initialMs, maxMs int) time.Duration {
	backoffMs := initialMs
	for i := 0; i < attempt; i++ {
		backoffMs *= 2
		if backoffMs >= maxMs {
			return time.Duration(maxMs) * time.Millisecond
		}
	}

	return time.Duration(backoffMs) * time.Millisecond
}
