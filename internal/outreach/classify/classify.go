// Package classify maps provider errors onto the fixed retry/skip taxonomy
// that drives the dispatcher's decisions.
package classify

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"outreach_backend/internal/outreach/domain"
)

// Decision is the classified handling for a dispatch failure.
type Decision int

const (
	// DecisionRetry: transient failure (timeout, rate limit, 5xx-equivalent).
	// The attempt may be repeated with backoff, bounded by the retry budget.
	DecisionRetry Decision = iota
	// DecisionPermanentSkip: the channel is permanently failed for this lead
	// (invalid recipient, hard bounce, opt-out). Other channels stay eligible.
	DecisionPermanentSkip
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionPermanentSkip:
		return "permanent_skip"
	}
	return "unknown"
}

// Classify maps a dispatch error onto a decision.
//
// Unknown errors classify as retryable: a mistaken retry costs one redundant
// provider call, a mistaken permanent skip loses the lead's channel forever.
func Classify(err error) Decision {
	if err == nil {
		return DecisionRetry
	}

	if errors.Is(err, domain.ErrInvalidContact) {
		return DecisionPermanentSkip
	}

	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		return classifyProvider(providerErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return DecisionRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DecisionRetry
	}

	return DecisionRetry
}

func classifyProvider(err *domain.ProviderError) Decision {
	switch err.Code {
	case domain.CodeInvalidRecipient, domain.CodeHardBounce, domain.CodeOptOut:
		return DecisionPermanentSkip
	case domain.CodeRateLimited:
		return DecisionRetry
	}

	switch {
	case err.StatusCode == http.StatusTooManyRequests,
		err.StatusCode == http.StatusRequestTimeout,
		err.StatusCode >= http.StatusInternalServerError,
		err.StatusCode == 0:
		return DecisionRetry
	default:
		// Provider-confirmed rejection of the request itself.
		return DecisionPermanentSkip
	}
}

// Backoff returns the delay before retry attempt number attempt (1-based),
// growing exponentially from base and capped at 30 seconds.
func Backoff(attempt int, base time.Duration) time.Duration {
	const maxDelay = 30 * time.Second

	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
