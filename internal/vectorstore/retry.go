package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxRetries = 3
	// retryBaseDelay grows linearly with the attempt number.
	retryBaseDelay = time.Second
)

// permanentErrMarkers match chromem validation failures. chromem returns
// plain string errors, so message matching is the only classification
// available.
var permanentErrMarkers = []string{
	"dimension", // query/collection embedding length mismatch
	"empty",     // missing ID, content or embedding
	"nResults",  // invalid query size
}

// isTransientError checks if an error is transient (should retry).
// Returns true for storage I/O failures.
// Returns false for context cancellation and validation errors.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	for _, marker := range permanentErrMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// withRetry runs fn up to maxRetries times with linearly increasing delay
// between attempts. Permanent errors propagate immediately without backoff.
// It respects context cancellation while waiting.
func withRetry(ctx context.Context, logger *zap.Logger, baseDelay time.Duration, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			if !isTransientError(err) {
				return fmt.Errorf("%s failed (permanent): %w", op, err)
			}
			logger.Warn("store operation failed",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxRetries),
				zap.Error(err),
			)
			if attempt < maxRetries {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(baseDelay * time.Duration(attempt)):
				}
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, lastErr)
}
