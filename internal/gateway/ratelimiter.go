package gateway

import (
	"sync"
	"time"
)

// tokenBucket caps inbound actions per connection to a fixed rate with
// burst headroom, per the gateway's rate-limit contract.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	refillRate float64 // tokens per second
	last       time.Time
}

func newTokenBucket(ratePerSec float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		max:        float64(burst),
		refillRate: ratePerSec,
		last:       time.Now(),
	}
}

// Allow reports whether one token is available, consuming it if so.
func (b *tokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.max {
		b.tokens = b.max
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
