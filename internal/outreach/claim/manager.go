// Package claim implements the claim manager: atomic leasing of bounded lead
// batches so concurrent workers and overlapping cycles never double-contact
// the same lead.
package claim

import (
	"context"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/store"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/clock"
	"outreach_backend/platform/logger"
)

// ReleaseOutcome is the dispatcher's verdict for a processed lead, applied
// as a status transition on release.
type ReleaseOutcome int

const (
	// ReleaseSent: a channel was delivered; the lead stays eligible for
	// other channels on later cycles.
	ReleaseSent ReleaseOutcome = iota
	// ReleaseRetryLater: a transient failure; the lead returns to its
	// pre-claim eligibility.
	ReleaseRetryLater
	// ReleaseChannelFailed: one channel permanently failed but others
	// remain viable; the lead returns to its pre-claim eligibility.
	ReleaseChannelFailed
	// ReleaseContacted: terminal, every viable channel was delivered.
	ReleaseContacted
	// ReleaseInvalidContact: terminal, no viable contact info remains.
	ReleaseInvalidContact
	// ReleaseExhausted: terminal, all channels attempted without a delivery.
	ReleaseExhausted
)

// String returns the outcome name for logging and summaries.
func (o ReleaseOutcome) String() string {
	switch o {
	case ReleaseSent:
		return "sent"
	case ReleaseRetryLater:
		return "retry_later"
	case ReleaseChannelFailed:
		return "channel_failed"
	case ReleaseContacted:
		return "contacted"
	case ReleaseInvalidContact:
		return "invalid_contact"
	case ReleaseExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Manager leases leads through the store's conditional-update primitive.
// The version CAS is the sole synchronization point; no in-process lock is
// involved, so multiple process instances may claim concurrently.
type Manager struct {
	store    store.Store
	clock    clock.Clock
	leaseTTL time.Duration
	log      *logger.Logger
}

// NewManager creates a claim manager.
func NewManager(st store.Store, clk clock.Clock, leaseTTL time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		store:    st,
		clock:    clk,
		leaseTTL: leaseTTL,
		log:      log,
	}
}

// ClaimBatch atomically leases up to capacity eligible leads for workerID.
// Leads lost to a concurrent claimer are skipped, shrinking the batch; the
// returned set is disjoint from every other concurrently held valid lease.
func (m *Manager) ClaimBatch(ctx context.Context, workerID string, capacity int) ([]domain.Lease, error) {
	now := m.clock.Now()

	candidates, err := m.store.FindEligible(ctx, domain.EligibleStatuses(), now, capacity)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "find eligible leads", err).WithOp("claim.ClaimBatch")
	}

	expiresAt := now.Add(m.leaseTTL)
	status := domain.StatusProcessing

	leases := make([]domain.Lease, 0, len(candidates))
	for _, lead := range candidates {
		claimed, err := m.store.ConditionalUpdate(ctx, lead.ID, lead.Version, store.LeadUpdate{
			Status:         &status,
			ClaimedBy:      &workerID,
			ClaimExpiresAt: &expiresAt,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, "claim lead", err).WithOp("claim.ClaimBatch")
		}
		if !claimed {
			// Lost the race to another claimer. Not an error.
			m.log.Debug("claim conflict", "lead_id", lead.ID.String())
			continue
		}

		snapshot := lead
		snapshot.Status = domain.StatusProcessing
		snapshot.ClaimedBy = workerID
		snapshot.ClaimExpiresAt = &expiresAt
		snapshot.Version = lead.Version + 1

		leases = append(leases, domain.Lease{
			LeadID:      lead.ID,
			WorkerID:    workerID,
			Version:     snapshot.Version,
			AcquiredAt:  now,
			ExpiresAt:   expiresAt,
			Lead:        snapshot,
			PriorStatus: lead.Status,
		})
	}

	return leases, nil
}

// Release clears the claim and applies the status transition implied by the
// outcome. Releasing a lease that expired and was reclaimed is a logged
// no-op, never an error: the newer claim owns the lead now.
func (m *Manager) Release(ctx context.Context, lease domain.Lease, outcome ReleaseOutcome) error {
	status := m.statusFor(lease, outcome)

	released, err := m.store.ConditionalUpdate(ctx, lease.LeadID, lease.Version, store.LeadUpdate{
		Status:     &status,
		ClearClaim: true,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "release lease", err).WithOp("claim.Release")
	}
	if !released {
		m.log.Warn("stale lease release ignored",
			"lead_id", lease.LeadID.String(),
			"worker_id", lease.WorkerID,
			"outcome", outcome.String(),
		)
	}
	return nil
}

// ExpireStaleClaims voids leases past their TTL so crashed workers never
// strand a lead in processing.
func (m *Manager) ExpireStaleClaims(ctx context.Context) (int, error) {
	expired, err := m.store.ExpireStaleClaims(ctx, m.clock.Now())
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnavailable, "expire stale claims", err).WithOp("claim.ExpireStaleClaims")
	}
	if expired > 0 {
		m.log.Info("expired stale claims", "count", expired)
	}
	return expired, nil
}

// statusFor maps a release outcome onto the lead's next status. Non-terminal
// outcomes return the lead to its pre-claim eligibility.
func (m *Manager) statusFor(lease domain.Lease, outcome ReleaseOutcome) domain.LeadStatus {
	switch outcome {
	case ReleaseSent:
		return domain.StatusTouched
	case ReleaseContacted:
		return domain.StatusContacted
	case ReleaseInvalidContact:
		return domain.StatusInvalidContact
	case ReleaseExhausted:
		return domain.StatusExhausted
	case ReleaseRetryLater, ReleaseChannelFailed:
		if lease.PriorStatus == "" {
			return domain.StatusNew
		}
		return lease.PriorStatus
	}
	return domain.StatusNew
}
