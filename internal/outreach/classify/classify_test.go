package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"outreach_backend/internal/outreach/domain"
)

func TestClassify_ProviderCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Decision
	}{
		{"invalid recipient", &domain.ProviderError{Code: domain.CodeInvalidRecipient, StatusCode: 400}, DecisionPermanentSkip},
		{"hard bounce", &domain.ProviderError{Code: domain.CodeHardBounce, StatusCode: 400}, DecisionPermanentSkip},
		{"opt out", &domain.ProviderError{Code: domain.CodeOptOut, StatusCode: 400}, DecisionPermanentSkip},
		{"rate limited code", &domain.ProviderError{Code: domain.CodeRateLimited, StatusCode: 400}, DecisionRetry},
		{"429 without code", &domain.ProviderError{StatusCode: 429}, DecisionRetry},
		{"408 without code", &domain.ProviderError{StatusCode: 408}, DecisionRetry},
		{"500", &domain.ProviderError{StatusCode: 500}, DecisionRetry},
		{"503", &domain.ProviderError{StatusCode: 503}, DecisionRetry},
		{"no response", &domain.ProviderError{StatusCode: 0}, DecisionRetry},
		{"422 rejection", &domain.ProviderError{StatusCode: 422}, DecisionPermanentSkip},
		{"400 rejection", &domain.ProviderError{StatusCode: 400}, DecisionPermanentSkip},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassify_WrappedProviderError(t *testing.T) {
	err := fmt.Errorf("send email: %w", &domain.ProviderError{Code: domain.CodeHardBounce, StatusCode: 400})
	if got := Classify(err); got != DecisionPermanentSkip {
		t.Fatalf("expected permanent_skip for wrapped provider error, got %s", got)
	}
}

func TestClassify_InvalidContact(t *testing.T) {
	if got := Classify(domain.ErrInvalidContact); got != DecisionPermanentSkip {
		t.Fatalf("expected permanent_skip, got %s", got)
	}
}

func TestClassify_Timeouts(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != DecisionRetry {
		t.Fatalf("expected retry for deadline exceeded, got %s", got)
	}
}

func TestClassify_UnknownErrorDefaultsToRetry(t *testing.T) {
	if got := Classify(errors.New("something odd")); got != DecisionRetry {
		t.Fatalf("expected retry for unknown error, got %s", got)
	}
}

func TestBackoff_ExponentialGrowthWithCap(t *testing.T) {
	base := 500 * time.Millisecond

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tc := range cases {
		if got := Backoff(tc.attempt, base); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}
