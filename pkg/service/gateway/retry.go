package gateway

import (
	"math/rand/v2"
	"time"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// retryDelay computes the wait before the given attempt (attempt >= 1).
// Exponential backoff grows as base*2^(attempt-1), capped at max, with
// half-range jitter so synchronized callers do not retry in lockstep.
func retryDelay(policy types.RetryPolicy, attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}

	switch policy {
	case types.RetryFixedDelay:
		return base

	case types.RetryLinearBackoff:
		d := base * time.Duration(attempt)
		if max > 0 && d > max {
			d = max
		}
		return d

	case types.RetryExponentialBackoff:
		d := base << (attempt - 1)
		if d <= 0 || (max > 0 && d > max) {
			d = max
		}
		return jitter(d)

	default:
		return 0
	}
}

// jitter spreads d over [d/2, d)
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half)
}
