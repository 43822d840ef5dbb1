package gateway

import (
	"testing"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestBreakerLifecycle(t *testing.T) {
	clock := time.Now()
	b := newBreaker(BreakerConfig{
		Enabled:   true,
		Threshold: 3,
		Cooldown:  10 * time.Second,
	})
	b.now = func() time.Time { return clock }

	// Closed: calls flow, failures accumulate
	for i := 0; i < 2; i++ {
		gt.True(t, b.allow())
		b.recordFailure()
	}
	gt.True(t, b.allow())
	b.recordFailure() // third consecutive failure opens the circuit

	gt.False(t, b.allow())

	// Still open inside the cooldown window
	clock = clock.Add(5 * time.Second)
	gt.False(t, b.allow())

	// Cooldown expired: one half-open probe allowed, a second rejected
	clock = clock.Add(6 * time.Second)
	gt.True(t, b.allow())
	gt.False(t, b.allow())

	// Probe succeeds: circuit recloses and failures reset
	b.recordSuccess()
	gt.True(t, b.allow())
	b.recordFailure()
	gt.True(t, b.allow())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	clock := time.Now()
	b := newBreaker(BreakerConfig{
		Enabled:   true,
		Threshold: 1,
		Cooldown:  time.Second,
	})
	b.now = func() time.Time { return clock }

	gt.True(t, b.allow())
	b.recordFailure()
	gt.False(t, b.allow())

	clock = clock.Add(2 * time.Second)
	gt.True(t, b.allow()) // half-open probe
	b.recordFailure()     // probe failed: back to open with a fresh cooldown

	gt.False(t, b.allow())
	clock = clock.Add(500 * time.Millisecond)
	gt.False(t, b.allow())
	clock = clock.Add(600 * time.Millisecond)
	gt.True(t, b.allow())
}

func TestBreakerDisabledAlwaysAllows(t *testing.T) {
	b := newBreaker(DefaultBreakerConfig())
	for i := 0; i < 10; i++ {
		gt.True(t, b.allow())
		b.recordFailure()
	}
	gt.True(t, b.allow())
}

func TestRetryDelay(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	t.Run("fixed", func(t *testing.T) {
		for attempt := 1; attempt <= 4; attempt++ {
			gt.Value(t, retryDelay(types.RetryFixedDelay, attempt, base, max)).Equal(base)
		}
	})

	t.Run("linear grows with attempt and caps", func(t *testing.T) {
		gt.Value(t, retryDelay(types.RetryLinearBackoff, 1, base, max)).Equal(base)
		gt.Value(t, retryDelay(types.RetryLinearBackoff, 3, base, max)).Equal(3 * base)
		gt.Value(t, retryDelay(types.RetryLinearBackoff, 100, base, max)).Equal(max)
	})

	t.Run("exponential doubles, caps, and jitters within range", func(t *testing.T) {
		for attempt := 1; attempt <= 8; attempt++ {
			d := retryDelay(types.RetryExponentialBackoff, attempt, base, max)
			raw := base << (attempt - 1)
			if raw > max {
				raw = max
			}
			gt.Number(t, int64(d)).GreaterOrEqual(int64(raw) / 2)
			gt.Number(t, int64(d)).Less(int64(raw))
		}
	})

	t.Run("none yields zero", func(t *testing.T) {
		gt.Value(t, retryDelay(types.RetryNone, 1, base, max)).Equal(time.Duration(0))
	})
}
