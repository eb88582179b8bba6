package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_Allow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("allows before any signal", func(t *testing.T) {
		b := New()
		b.now = func() time.Time { return base }
		assert.NoError(t, b.Allow())
	})

	t.Run("fails fast during cooldown with remaining wait", func(t *testing.T) {
		b := New()
		current := base
		b.now = func() time.Time { return current }

		b.Trip(30 * time.Second)
		current = base.Add(10 * time.Second)

		err := b.Allow()
		require.Error(t, err)

		var rle *RateLimitedError
		require.ErrorAs(t, err, &rle)
		assert.Equal(t, 20*time.Second, rle.Wait)
	})

	t.Run("allows after cooldown elapses", func(t *testing.T) {
		b := New()
		current := base
		b.now = func() time.Time { return current }

		b.Trip(30 * time.Second)
		current = base.Add(31 * time.Second)

		assert.NoError(t, b.Allow())
	})

	t.Run("zero retry hint falls back to default", func(t *testing.T) {
		b := New()
		current := base
		b.now = func() time.Time { return current }

		b.Trip(0)
		current = base.Add(59 * time.Second)
		assert.Error(t, b.Allow())

		current = base.Add(61 * time.Second)
		assert.NoError(t, b.Allow())
	})

	t.Run("later signal resets the window", func(t *testing.T) {
		b := New()
		current := base
		b.now = func() time.Time { return current }

		b.Trip(30 * time.Second)
		current = base.Add(25 * time.Second)
		b.Trip(10 * time.Second)

		current = base.Add(30 * time.Second)
		assert.Error(t, b.Allow())

		current = base.Add(36 * time.Second)
		assert.NoError(t, b.Allow())
	})
}
