package types

import "fmt"

// RetryPolicy controls how the gateway spaces retry attempts against a provider
type RetryPolicy string

const (
	// RetryNone disables retries entirely
	RetryNone RetryPolicy = "none"
	// RetryFixedDelay waits a constant delay between attempts
	RetryFixedDelay RetryPolicy = "fixed"
	// RetryLinearBackoff grows the delay linearly with the attempt number
	RetryLinearBackoff RetryPolicy = "linear"
	// RetryExponentialBackoff doubles the delay per attempt, capped, with jitter
	RetryExponentialBackoff RetryPolicy = "exponential"
)

// AllRetryPolicies returns all supported retry policies
func AllRetryPolicies() []RetryPolicy {
	return []RetryPolicy{
		RetryNone,
		RetryFixedDelay,
		RetryLinearBackoff,
		RetryExponentialBackoff,
	}
}

// IsValid checks if the retry policy is supported
func (p RetryPolicy) IsValid() bool {
	switch p {
	case RetryNone, RetryFixedDelay, RetryLinearBackoff, RetryExponentialBackoff:
		return true
	default:
		return false
	}
}

// String returns the string representation of the retry policy
func (p RetryPolicy) String() string {
	return string(p)
}

// ParseRetryPolicy parses a string into a RetryPolicy
func ParseRetryPolicy(s string) (RetryPolicy, error) {
	p := RetryPolicy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid retry policy: %s", s)
	}
	return p, nil
}
