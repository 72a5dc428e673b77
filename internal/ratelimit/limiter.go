// Package ratelimit provides the process-wide interval limiter and ban
// barrier (spec.md §4.C), grounded on
// kmkrofficial-project-tachyon/internal/core/bandwidth.go's
// golang.org/x/time/rate wrapping struct — reshaped from a bytes/sec
// token bucket to a "one token per minimum interval" gate, since the
// spec's contract is a minimum inter-request interval, not a bandwidth
// cap.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter serializes callers to a minimum inter-request interval.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a limiter that permits at most one call per interval.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until a permit is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// SetInterval adjusts the minimum interval at runtime.
func (l *Limiter) SetInterval(interval time.Duration) {
	l.rl.SetLimit(rate.Every(interval))
}
