// Package dispatch runs the bounded worker pool that processes leased leads:
// policy lookup, cooldown dedup against the touch ledger, the provider call,
// exactly one touch record per attempt, and exactly one claim release per
// lead. Per-lead failures never propagate past this boundary.
package dispatch

import (
	"context"
	"sync"
	"time"

	"outreach_backend/internal/outreach/claim"
	"outreach_backend/internal/outreach/classify"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/store"
	"outreach_backend/platform/clock"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Pool is a bounded set of dispatch workers.
type Pool struct {
	store    store.Store
	manager  *claim.Manager
	engine   policyEngine
	senders  Senders
	content  ContentProvider
	clock    clock.Clock
	settings config.OutreachSettings
	limiters map[domain.Channel]*rate.Limiter
	log      *logger.Logger
}

// policyEngine is the slice of the policy engine the pool consumes.
type policyEngine interface {
	EligibleChannels(lead domain.Lead, now time.Time) []domain.Channel
	Eligible(lead domain.Lead, channel domain.Channel, now time.Time) bool
	Priority() []domain.Channel
}

// NewPool creates a dispatcher pool. Senders missing for a channel make that
// channel permanently unavailable; the per-channel rate limiter respects
// provider caps across all workers.
func NewPool(
	st store.Store,
	manager *claim.Manager,
	engine policyEngine,
	senders Senders,
	content ContentProvider,
	clk clock.Clock,
	settings config.OutreachSettings,
	log *logger.Logger,
) *Pool {
	limiters := make(map[domain.Channel]*rate.Limiter, len(senders))
	for channel := range senders {
		limiters[channel] = rate.NewLimiter(rate.Limit(settings.SendRatePerSecond), 1)
	}

	return &Pool{
		store:    st,
		manager:  manager,
		engine:   engine,
		senders:  senders,
		content:  content,
		clock:    clk,
		settings: settings,
		limiters: limiters,
		log:      log,
	}
}

// Run processes the leased batch with the configured number of workers and
// returns outcome counts. When ctx expires, workers finish their in-flight
// lead and stop; untaken leases are released untouched so the next cycle can
// reclaim them promptly.
func (p *Pool) Run(ctx context.Context, leases []domain.Lease) map[string]int {
	var mu sync.Mutex
	counts := make(map[string]int)
	record := func(outcome string) {
		mu.Lock()
		counts[outcome]++
		mu.Unlock()
	}

	leaseCh := make(chan domain.Lease)
	go func() {
		defer close(leaseCh)
		for _, lease := range leases {
			if ctx.Err() != nil {
				// Cycle deadline: release untaken leases immediately rather
				// than letting their TTL run out.
				p.release(context.WithoutCancel(ctx), lease, claim.ReleaseRetryLater)
				record("deadline_unprocessed")
				continue
			}
			select {
			case <-ctx.Done():
				p.release(context.WithoutCancel(ctx), lease, claim.ReleaseRetryLater)
				record("deadline_unprocessed")
			case leaseCh <- lease:
			}
		}
	}()

	workers := p.settings.WorkerCount
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for lease := range leaseCh {
				// An in-flight lead may finish past the cycle deadline, so
				// its dispatch runs on a detached context bounded by the
				// lease TTL instead.
				leadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.settings.LeaseTTL)
				outcome := p.processLease(leadCtx, lease)
				cancel()
				record(outcome.String())
			}
			return nil
		})
	}
	_ = g.Wait()

	return counts
}

// attemptResult is the final result of one channel attempt (retries included).
type attemptResult int

const (
	attemptSent attemptResult = iota
	attemptPermanent
	attemptTransient
)

// channelPlan partitions the lead's channels by why they can or cannot be
// dispatched right now.
type channelPlan struct {
	sendable     []domain.Channel // eligible now, not deduplicated, sender configured
	cooldown     []domain.Channel // covered by a recent sent touch
	permanent    []domain.Channel // permanently failed or no sender
	windowClosed []domain.Channel // contactable, but outside the active window
	withContact  int
}

func (p *Pool) processLease(ctx context.Context, lease domain.Lease) claim.ReleaseOutcome {
	log := p.log.WithWorkerID(lease.WorkerID)
	now := p.clock.Now()

	plan, err := p.planChannels(ctx, lease.Lead, now)
	if err != nil {
		log.StoreError("plan_channels", err)
		return p.release(ctx, lease, claim.ReleaseRetryLater)
	}

	if len(plan.sendable) == 0 {
		return p.release(ctx, lease, p.noAttemptOutcome(ctx, lease, plan, log))
	}

	channel := plan.sendable[0]
	attempted := map[domain.Channel]bool{channel: true}
	result := p.attemptChannel(ctx, lease, channel, log)

	if result == attemptPermanent {
		// Fallback is policy-gated: a second attempt happens only when a
		// configured rule names it, and it produces its own touch record.
		if next, ok := p.fallbackChannel(channel, plan, attempted); ok {
			log.Info("fallback attempt",
				"lead_id", lease.LeadID.String(),
				"from_channel", string(channel),
				"to_channel", string(next),
			)
			attempted[next] = true
			result = p.attemptChannel(ctx, lease, next, log)
		}
	}

	return p.release(ctx, lease, p.attemptOutcome(lease, plan, attempted, result))
}

// planChannels consults policy and the touch ledger.
func (p *Pool) planChannels(ctx context.Context, lead domain.Lead, now time.Time) (channelPlan, error) {
	var plan channelPlan

	for _, channel := range p.engine.Priority() {
		if !hasContact(lead, channel) {
			continue
		}
		plan.withContact++

		if !p.engine.Eligible(lead, channel, now) {
			plan.windowClosed = append(plan.windowClosed, channel)
			continue
		}

		failed, err := p.store.HasPermanentFailure(ctx, lead.ID, channel)
		if err != nil {
			return channelPlan{}, err
		}
		if failed {
			plan.permanent = append(plan.permanent, channel)
			continue
		}

		cooldown := p.settings.CooldownByChannel[string(channel)]
		recent, err := p.store.RecentSent(ctx, lead.ID, channel, cooldown, now)
		if err != nil {
			return channelPlan{}, err
		}
		if recent != nil {
			plan.cooldown = append(plan.cooldown, channel)
			continue
		}

		if _, ok := p.senders[channel]; !ok {
			plan.permanent = append(plan.permanent, channel)
			continue
		}

		plan.sendable = append(plan.sendable, channel)
	}

	return plan, nil
}

// noAttemptOutcome decides the release when no channel could be dispatched.
// This path must always end in an explicit status, never a silent no-op.
func (p *Pool) noAttemptOutcome(ctx context.Context, lease domain.Lease, plan channelPlan, log *logger.Logger) claim.ReleaseOutcome {
	if plan.withContact == 0 {
		return claim.ReleaseInvalidContact
	}

	if len(plan.windowClosed) > 0 {
		// A channel opens later; keep the lead claimable.
		return claim.ReleaseRetryLater
	}

	if len(plan.cooldown) > 0 {
		// Every contactable channel is covered by a recent delivery or a
		// permanent failure. Ledger the duplicate skip explicitly.
		p.appendTouch(ctx, domain.NewTouch(
			lease.LeadID, plan.cooldown[0], domain.OutcomeSkippedDuplicate,
			"", "all channels within cooldown", p.clock.Now(),
		), log)
		return claim.ReleaseContacted
	}

	// Only permanent failures remain.
	if lease.PriorStatus == domain.StatusTouched {
		return claim.ReleaseContacted
	}
	return claim.ReleaseExhausted
}

// attemptOutcome maps the final attempt result onto a release outcome, given
// what remains viable for the lead.
func (p *Pool) attemptOutcome(lease domain.Lease, plan channelPlan, attempted map[domain.Channel]bool, result attemptResult) claim.ReleaseOutcome {
	remaining := len(plan.windowClosed)
	for _, channel := range plan.sendable {
		if !attempted[channel] {
			remaining++
		}
	}

	switch result {
	case attemptSent:
		if remaining == 0 {
			return claim.ReleaseContacted
		}
		return claim.ReleaseSent
	case attemptTransient:
		return claim.ReleaseRetryLater
	default: // attemptPermanent
		if remaining > 0 {
			return claim.ReleaseChannelFailed
		}
		if len(plan.cooldown) > 0 || lease.PriorStatus == domain.StatusTouched {
			return claim.ReleaseContacted
		}
		return claim.ReleaseInvalidContact
	}
}

// attemptChannel performs one dispatch attempt sequence on a channel,
// retries included, and writes exactly one touch reflecting its outcome.
func (p *Pool) attemptChannel(ctx context.Context, lease domain.Lease, channel domain.Channel, log *logger.Logger) attemptResult {
	lead := lease.Lead

	content, err := p.content.MessageFor(ctx, lead, channel)
	if err != nil {
		log.DispatchError(lead.ID.String(), string(channel), "content", err)
		p.appendTouch(ctx, domain.NewTouch(
			lead.ID, channel, domain.OutcomeFailedTransient, "", "content: "+err.Error(), p.clock.Now(),
		), log)
		return attemptTransient
	}

	if !contactValid(lead, channel) {
		// Malformed contact info: no provider call is made, and the skip is
		// logged distinctly from a provider failure.
		log.DispatchError(lead.ID.String(), string(channel), "invalid_contact", domain.ErrInvalidContact)
		p.appendTouch(ctx, domain.NewTouch(
			lead.ID, channel, domain.OutcomeFailedPermanent, "", "invalid contact info, no attempt made", p.clock.Now(),
		), log)
		return attemptPermanent
	}

	sender := p.senders[channel]
	limiter := p.limiters[channel]

	var lastErr error
	for attempt := 1; attempt <= p.settings.RetryMaxAttempts; attempt++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				p.appendTouch(ctx, domain.NewTouch(
					lead.ID, channel, domain.OutcomeFailedTransient, "", "rate limit wait interrupted", p.clock.Now(),
				), log)
				return attemptTransient
			}
		}

		result, err := sender.Send(ctx, lead, content)
		if err == nil {
			log.DispatchOutcome(lead.ID.String(), string(channel), string(domain.OutcomeSent), result.ProviderID)
			p.appendTouch(ctx, domain.NewTouch(
				lead.ID, channel, domain.OutcomeSent, result.ProviderID, "", p.clock.Now(),
			), log)
			return attemptSent
		}

		lastErr = err
		decision := classify.Classify(err)
		log.DispatchError(lead.ID.String(), string(channel), decision.String(), err)

		if decision == classify.DecisionPermanentSkip {
			p.appendTouch(ctx, domain.NewTouch(
				lead.ID, channel, domain.OutcomeFailedPermanent, "", err.Error(), p.clock.Now(),
			), log)
			return attemptPermanent
		}

		if attempt < p.settings.RetryMaxAttempts {
			select {
			case <-ctx.Done():
				p.appendTouch(ctx, domain.NewTouch(
					lead.ID, channel, domain.OutcomeFailedTransient, "", "deadline during retry backoff: "+err.Error(), p.clock.Now(),
				), log)
				return attemptTransient
			case <-time.After(classify.Backoff(attempt, p.settings.RetryBaseDelay)):
			}
		}
	}

	// Retry budget exhausted: downgrade to a permanent skip for this channel
	// only; other channels stay eligible on later cycles.
	p.appendTouch(ctx, domain.NewTouch(
		lead.ID, channel, domain.OutcomeFailedPermanent, "", "retries exhausted: "+lastErr.Error(), p.clock.Now(),
	), log)
	return attemptPermanent
}

// fallbackChannel returns the configured fallback target, if any rule fires
// and the target is still dispatchable this cycle.
func (p *Pool) fallbackChannel(from domain.Channel, plan channelPlan, attempted map[domain.Channel]bool) (domain.Channel, bool) {
	for _, rule := range p.settings.FallbackRules {
		if rule.OnChannel != string(from) || rule.OnOutcome != string(domain.OutcomeFailedPermanent) {
			continue
		}
		target, ok := domain.ParseChannel(rule.ThenChannel)
		if !ok || attempted[target] {
			continue
		}
		for _, channel := range plan.sendable {
			if channel == target {
				return target, true
			}
		}
	}
	return "", false
}

func (p *Pool) release(ctx context.Context, lease domain.Lease, outcome claim.ReleaseOutcome) claim.ReleaseOutcome {
	if err := p.manager.Release(ctx, lease, outcome); err != nil {
		p.log.StoreError("release", err)
	}
	return outcome
}

// appendTouch writes to the ledger; a failed write is logged, not fatal, so
// the lease still gets released.
func (p *Pool) appendTouch(ctx context.Context, touch domain.Touch, log *logger.Logger) {
	if err := p.store.AppendTouch(ctx, touch); err != nil {
		log.StoreError("append_touch", err)
	}
}

func hasContact(lead domain.Lead, channel domain.Channel) bool {
	switch channel {
	case domain.ChannelEmail:
		return lead.EmailAddress() != ""
	case domain.ChannelSMS, domain.ChannelVoice:
		return lead.PhoneNumber() != ""
	}
	return false
}
