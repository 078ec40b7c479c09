// Package limiter bounds request volume per client key over a fixed window.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when Allowed
	ResetAt    time.Time     // end of the current window
	ResetIn    time.Duration // ResetAt relative to the limiter's clock
}

// Limiter counts requests per key and rejects once the window cap is reached.
type Limiter interface {
	// Allow records one request for key and reports whether it may proceed.
	Allow(ctx context.Context, key string) (Decision, error)
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

func decide(limit, hits int, start time.Time, window time.Duration, now time.Time) Decision {
	reset := start.Add(window)
	d := Decision{Limit: limit, ResetAt: reset, ResetIn: reset.Sub(now)}
	if hits > limit {
		d.RetryAfter = reset.Sub(now)
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
		return d
	}
	d.Allowed = true
	d.Remaining = limit - hits
	return d
}
