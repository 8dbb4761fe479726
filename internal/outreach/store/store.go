// Package store defines the lead store consumed by the claim manager and the
// touch ledger, with a Postgres implementation for production and an
// in-memory implementation for tests.
package store

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = errors.New("lead not found")

// LeadUpdate describes the fields a conditional update may set. Nil pointer
// fields are left unchanged. Every successful update increments the lead
// version; the version check is the atomic claim primitive.
type LeadUpdate struct {
	Status         *domain.LeadStatus
	ClaimedBy      *string
	ClaimExpiresAt *time.Time
	ClearClaim     bool // clears claimed_by and claim_expires_at
}

// InsertLeadParams are the fields for seeding a new lead.
type InsertLeadParams struct {
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
}

// Store is the shared lead store. The leads table is mutated only through
// the claim→release protocol (ConditionalUpdate); touches are append-only
// and safe for concurrent writers.
type Store interface {
	InsertLead(ctx context.Context, params InsertLeadParams) (domain.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)

	// FindEligible returns up to limit leads whose status is in statuses and
	// whose claim, if any, has expired as of now.
	FindEligible(ctx context.Context, statuses []domain.LeadStatus, now time.Time, limit int) ([]domain.Lead, error)

	// ConditionalUpdate applies set to the lead iff its version still equals
	// expectedVersion. Returns false (and no error) when the version moved,
	// which callers treat as a lost claim race, not a failure.
	ConditionalUpdate(ctx context.Context, leadID uuid.UUID, expectedVersion int64, set LeadUpdate) (bool, error)

	// ExpireStaleClaims voids every lease past its expiry, returning affected
	// leads to an eligible status. This is the crash-recovery sweep.
	ExpireStaleClaims(ctx context.Context, now time.Time) (int, error)

	AppendTouch(ctx context.Context, touch domain.Touch) error

	// RecentSent returns the most recent sent touch for the lead and channel
	// within the cooldown window, or nil.
	RecentSent(ctx context.Context, leadID uuid.UUID, channel domain.Channel, within time.Duration, now time.Time) (*domain.Touch, error)

	// HasPermanentFailure reports whether the channel was ever permanently
	// failed for the lead.
	HasPermanentFailure(ctx context.Context, leadID uuid.UUID, channel domain.Channel) (bool, error)

	CampaignState(ctx context.Context) (domain.CampaignState, error)
	SetCampaignState(ctx context.Context, state domain.CampaignState) error

	CountByStatus(ctx context.Context) (map[domain.LeadStatus]int, error)
}
