package rpc

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the token bucket shared by every request sent to one network.
type Limiter struct {
	limiter *rate.Limiter
	network string
}

// NewLimiter creates a limiter allowing rps requests per second with the given burst.
// A burst below one is raised to one so that a request can ever be admitted.
func NewLimiter(network string, rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		network: network,
	}
}

// Wait blocks until one request may be sent, or ctx is done.
// Exactly one token is consumed per successful call.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token for network %s", l.network)
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	RateLimitWaitInc(l.network)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Limit returns the configured requests per second.
func (l *Limiter) Limit() float64 {
	return float64(l.limiter.Limit())
}

// Burst returns the configured burst.
func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}

// Network returns the network the limiter guards.
func (l *Limiter) Network() string {
	return l.network
}
