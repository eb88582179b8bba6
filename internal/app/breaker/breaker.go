// Package breaker provides the process-wide rate-limit circuit breaker.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCooldown is used when the server does not advise a retry delay.
const DefaultCooldown = 60 * time.Second

// RateLimitedError reports that remote calls are gated, either because the
// breaker is engaged or because a live 429 was received. Wait is the time
// remaining until calls may proceed.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by Spotify, please wait %ds", int(e.Wait.Seconds()))
}

// Breaker tracks the last observed rate-limit signal and the server-advised
// cool-down. A single instance is shared by every component that issues
// remote calls; one signal throttles all subsequent calls process-wide.
type Breaker struct {
	mu         sync.Mutex
	lastSignal time.Time
	cooldown   time.Duration

	now func() time.Time
}

// New creates a breaker in the open (allowing) state.
func New() *Breaker {
	return &Breaker{
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// Allow returns nil when remote calls may proceed, or a RateLimitedError
// carrying the remaining wait when the cool-down has not elapsed. It makes
// no remote call either way.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastSignal.IsZero() {
		return nil
	}
	elapsed := b.now().Sub(b.lastSignal)
	if elapsed < b.cooldown {
		return &RateLimitedError{Wait: b.cooldown - elapsed}
	}
	return nil
}

// Remaining returns the time left in the current cool-down window, or zero
// when calls may proceed.
func (b *Breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastSignal.IsZero() {
		return 0
	}
	if remaining := b.cooldown - b.now().Sub(b.lastSignal); remaining > 0 {
		return remaining
	}
	return 0
}

// Trip records a rate-limit signal. retryAfter overrides the cool-down when
// positive; otherwise the default applies.
func (b *Breaker) Trip(retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastSignal = b.now()
	if retryAfter > 0 {
		b.cooldown = retryAfter
	} else {
		b.cooldown = DefaultCooldown
	}
}
