package binance

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fortis-trading-bot/internal/logging"
)

// RateLimiter spaces requests with a token bucket and holds all requests
// back after the exchange answers 429/418 until the ban expires
type RateLimiter struct {
	limiter *rate.Limiter

	mu       sync.RWMutex
	banUntil time.Time
	now      func() time.Time
}

// NewRateLimiter allows requestsPerSec with a burst of the same size.
// requestsPerSec <= 0 uses 10.
func NewRateLimiter(requestsPerSec float64) *RateLimiter {
	if requestsPerSec <= 0 {
		requestsPerSec = 10
	}
	burst := int(requestsPerSec)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		now:     time.Now,
	}
}

// Wait blocks until a request may be sent or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if wait := rl.banRemaining(); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return rl.limiter.Wait(ctx)
}

// Ban holds requests back for d
func (rl *RateLimiter) Ban(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	until := rl.now().Add(d)
	if until.After(rl.banUntil) {
		rl.banUntil = until
		logging.WithComponent("binance").Warn("Rate limited by exchange, backing off", "until", until.Format(time.RFC3339))
	}
}

// BannedUntil returns the end of the current ban, zero if none was set
func (rl *RateLimiter) BannedUntil() time.Time {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.banUntil
}

func (rl *RateLimiter) banRemaining() time.Duration {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.banUntil.Sub(rl.now())
}
