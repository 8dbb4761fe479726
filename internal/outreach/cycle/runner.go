// Package cycle runs one orchestration cycle: campaign gate, stale-claim
// sweep, batch claim, dispatch, summary. Overlapping cycles are safe because
// all cross-cutting correctness lives in the claim manager, not here.
package cycle

import (
	"context"
	"time"

	"outreach_backend/internal/outreach/claim"
	"outreach_backend/internal/outreach/dispatch"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/store"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/clock"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Summary is the result of one orchestration cycle, returned to the trigger.
type Summary struct {
	CycleID      string
	State        domain.CampaignState
	Claimed      int
	Released     int
	ByOutcome    map[string]int
	StatusCounts map[domain.LeadStatus]int
	Duration     time.Duration
}

// Runner executes orchestration cycles.
type Runner struct {
	store    store.Store
	manager  *claim.Manager
	pool     *dispatch.Pool
	clock    clock.Clock
	settings config.OutreachSettings
	log      *logger.Logger
}

// NewRunner creates a cycle runner.
func NewRunner(
	st store.Store,
	manager *claim.Manager,
	pool *dispatch.Pool,
	clk clock.Clock,
	settings config.OutreachSettings,
	log *logger.Logger,
) *Runner {
	return &Runner{
		store:    st,
		manager:  manager,
		pool:     pool,
		clock:    clk,
		settings: settings,
		log:      log,
	}
}

// RunCycle executes one cycle. Store unavailability aborts the cycle with an
// error; any claims already taken are left to their TTL and recovered by the
// next cycle's stale sweep.
func (r *Runner) RunCycle(ctx context.Context) (Summary, error) {
	cycleID := uuid.NewString()
	start := r.clock.Now()
	log := r.log.WithCycleID(cycleID)

	state, err := r.store.CampaignState(ctx)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.KindUnavailable, "read campaign state", err).WithOp("cycle.RunCycle")
	}
	if !state.Working() {
		log.Info("campaign paused, cycle skipped")
		return Summary{CycleID: cycleID, State: state}, nil
	}

	if _, err := r.manager.ExpireStaleClaims(ctx); err != nil {
		return Summary{}, err
	}

	leases, err := r.manager.ClaimBatch(ctx, cycleID, r.settings.BatchCapacity)
	if err != nil {
		return Summary{}, err
	}

	var counts map[string]int
	if len(leases) > 0 {
		cycleCtx, cancel := context.WithTimeout(ctx, r.settings.CycleDeadline)
		counts = r.pool.Run(cycleCtx, leases)
		cancel()
	} else {
		counts = make(map[string]int)
	}

	released := 0
	for _, count := range counts {
		released += count
	}

	statusCounts, err := r.store.CountByStatus(ctx)
	if err != nil {
		// Summary enrichment only; the cycle itself already completed.
		log.StoreError("count_by_status", err)
		statusCounts = nil
	}

	summary := Summary{
		CycleID:      cycleID,
		State:        state,
		Claimed:      len(leases),
		Released:     released,
		ByOutcome:    counts,
		StatusCounts: statusCounts,
		Duration:     r.clock.Now().Sub(start),
	}

	log.CycleSummary(cycleID, summary.Claimed, summary.Released, counts, summary.Duration)
	return summary, nil
}
