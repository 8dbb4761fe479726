package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lease is a time-bounded, exclusive right for one worker to process a lead.
// It is created by the claim manager and destroyed by release or expiry.
type Lease struct {
	LeadID     uuid.UUID
	WorkerID   string
	Version    int64 // lead version after the claim; the CAS token for release
	AcquiredAt time.Time
	ExpiresAt  time.Time

	// Lead is a snapshot taken at claim time; PriorStatus is the lead's
	// eligibility before the claim, restored on non-terminal releases.
	Lead        Lead
	PriorStatus LeadStatus
}

// Expired reports whether the lease is void and the lead reclaimable.
func (l Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
