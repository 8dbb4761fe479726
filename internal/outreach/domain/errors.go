package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch error taxonomy. Per-lead errors are
// caught at the dispatcher boundary and turned into exactly one touch record
// plus one claim release; they never propagate silently past it.
var (
	// ErrClaimConflict: another worker already holds the lead. Not a failure,
	// the claimer simply gets a smaller batch.
	ErrClaimConflict = errors.New("claim conflict")
	// ErrClaimExpiredDuringWork: the lease lapsed mid-dispatch; the release
	// is best-effort and must not clobber a newer claim.
	ErrClaimExpiredDuringWork = errors.New("claim expired during work")
	// ErrInvalidContact: malformed phone/email detected before any provider
	// call was made. Logged distinctly from a provider failure.
	ErrInvalidContact = errors.New("invalid contact info")
)

// ProviderError is returned by channel senders when the provider rejects or
// fails a dispatch. The failure classifier maps it onto retry/skip decisions.
type ProviderError struct {
	Channel    Channel
	StatusCode int    // HTTP-equivalent status, 0 when the provider never answered
	Code       string // provider-specific error code, e.g. "invalid_recipient"
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s provider error %d (%s): %s", e.Channel, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s provider error %d: %s", e.Channel, e.StatusCode, e.Message)
}

// Provider error codes with fixed classification semantics.
const (
	CodeInvalidRecipient = "invalid_recipient"
	CodeHardBounce       = "hard_bounce"
	CodeOptOut           = "opt_out"
	CodeRateLimited      = "rate_limited"
)
