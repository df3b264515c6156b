// Package ratelimit paces requests against the platform's read APIs.
// Concurrent expectation poll loops share one limiter so fanning out never
// multiplies the query rate past what the vendor account tolerates.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps outbound read-side requests per second.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter builds a limiter allowing rps requests per second with a
// burst of the same size. rps <= 0 disables limiting.
func NewLimiter(rps int) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), rps)}
}

// Wait blocks until the next request may be sent or ctx is done. A nil
// Limiter or one built with rps <= 0 never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
