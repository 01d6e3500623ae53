// Package throttle provides the IOPS throttle the pool's clean path charges
// each write against. It exists as its own package so pkg/filepool never imports
// golang.org/x/time/rate directly and can be exercised against a fake in
// tests.
package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle is a token-bucket limiter that blocks a caller until enough
// budget is available, or ctx is done. CleanChunk charges it one "event" per
// bytesPerWrite chunk written; FormatWorker's allocation path does not use
// it at all, only the clean path is throttled.
type Throttle interface {
	// Wait blocks until a single unit of budget is available or ctx is
	// canceled.
	Wait(ctx context.Context) error
}

// rateThrottle wraps golang.org/x/time/rate.Limiter.
type rateThrottle struct {
	limiter *rate.Limiter
}

// NewIOPSThrottle returns a Throttle that admits up to iops events per
// second, with a burst of one: every event must individually clear the
// bucket, matching the per-write charge CleanChunk's slow path makes.
//
// An iops of 0 is interpreted as "unlimited" and returns a Throttle whose
// Wait never blocks — the zero value of FilePoolOptions.IOPS4Clean means
// no throttling was configured.
func NewIOPSThrottle(iops int) Throttle {
	if iops <= 0 {
		return unlimited{}
	}
	return &rateThrottle{limiter: rate.NewLimiter(rate.Limit(iops), 1)}
}

func (t *rateThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}
