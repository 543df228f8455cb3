package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"time"

	"github.com/goran-ethernal/ChainHound/pkg/config"
)

// retryableClasses are the error classes that get another attempt.
// Client errors are deterministic and cancellation belongs to the caller.
var retryableClasses = map[string]bool{
	ErrorClassTimeout:     true,
	ErrorClassRateLimited: true,
	ErrorClassServer:      true,
	ErrorClassNetwork:     true,
}

// isRetryable reports whether a failed request may succeed when repeated.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return retryableClasses[ClassifyError(err)]
}

// backoff returns the wait after the given failed attempt (1-based):
// InitialBackoff * BackoffMultiplier^(attempt-1), capped at MaxBackoff, with +/-25% jitter.
func backoff(cfg *config.RetryConfig, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	d := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	d = math.Min(d, float64(cfg.MaxBackoff.Duration))
	d += d * 0.25 * (2*rand.Float64() - 1)

	return time.Duration(math.Max(d, 0))
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or runs out of attempts.
// A nil cfg runs fn once. Every repeated attempt is counted per network and method.
func withRetry(ctx context.Context, cfg *config.RetryConfig, network, method string, fn func() error) error {
	if cfg == nil || cfg.MaxAttempts <= 1 {
		return fn()
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", method, attempt, err)
		}

		timer := time.NewTimer(backoff(cfg, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s retry after attempt %d interrupted: %w", method, attempt, ctx.Err())
		case <-timer.C:
		}

		RPCRetryInc(network, method)
	}
}
