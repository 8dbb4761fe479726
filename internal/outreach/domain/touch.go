package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the recorded result of one dispatch attempt.
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeFailedTransient  Outcome = "failed_transient"
	OutcomeFailedPermanent  Outcome = "failed_permanent"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
)

// Touch is an immutable record of one dispatch attempt and its outcome.
// Touches are only ever appended, never mutated or deleted; the ledger is
// the source of truth for cooldown deduplication and audit.
type Touch struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Channel    Channel
	Outcome    Outcome
	ProviderID string
	Detail     string
	At         time.Time
}

// NewTouch builds a touch record with a fresh ID.
func NewTouch(leadID uuid.UUID, channel Channel, outcome Outcome, providerID, detail string, at time.Time) Touch {
	return Touch{
		ID:         uuid.New(),
		LeadID:     leadID,
		Channel:    channel,
		Outcome:    outcome,
		ProviderID: providerID,
		Detail:     detail,
		At:         at,
	}
}
