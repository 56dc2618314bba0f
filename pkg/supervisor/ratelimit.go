package supervisor

import (
	"context"

	"golang.org/x/time/rate"
)

// Option configures a StreamingSupervisor or PollingSupervisor beyond its
// required constructor arguments.
type Option func(*options)

type options struct {
	limiter *rate.Limiter
}

func buildOptions(opts []Option) options {
	var o options
	for _, apply := range opts {
		apply(&o)
	}
	return o
}

// WithRateLimit caps the supervisor's connect/poll attempt rate at r events
// per second with burst b, independent of the backoff-after-failure delay
// computed by Delay. Where backoff only engages after a failure, this bounds
// the steady-state attempt rate even while every attempt succeeds — e.g. a
// polling cursor paired with a short pollInterval against a rate-limited
// upstream. Zero value (no option supplied) disables the limiter.
func WithRateLimit(r rate.Limit, b int) Option {
	return func(o *options) {
		o.limiter = rate.NewLimiter(r, b)
	}
}

// waitRateLimit blocks until the rate limiter admits the next attempt, or
// ctx is canceled. A nil limiter (no WithRateLimit option given) returns
// immediately.
func waitRateLimit(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
