package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and local tooling. A single
// mutex makes ConditionalUpdate atomic, mirroring the version CAS the
// Postgres implementation gets from its WHERE clause.
type Memory struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]domain.Lead
	touches  []domain.Touch
	campaign domain.CampaignState

	// FailNext makes the next store call return err, then resets. Used to
	// simulate an unavailable store.
	failNext error
}

// NewMemory creates an empty in-memory store with the campaign working.
func NewMemory() *Memory {
	return &Memory{
		leads:    make(map[uuid.UUID]domain.Lead),
		touches:  make([]domain.Touch, 0, 64),
		campaign: domain.CampaignWorking,
	}
}

// FailNext makes the next store operation return err.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Memory) InsertLead(_ context.Context, params InsertLeadParams) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.Lead{}, err
	}

	now := time.Now().UTC()
	lead := domain.Lead{
		ID:        uuid.New(),
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
		Status:    domain.StatusNew,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return domain.Lead{}, err
	}

	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return lead, nil
}

func (m *Memory) FindEligible(_ context.Context, statuses []domain.LeadStatus, now time.Time, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	wanted := make(map[domain.LeadStatus]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	matched := make([]domain.Lead, 0, limit)
	for _, lead := range m.leads {
		if _, ok := wanted[lead.Status]; !ok {
			continue
		}
		if lead.ClaimExpiresAt != nil && !lead.ClaimExpiresAt.Before(now) {
			continue
		}
		matched = append(matched, lead)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) ConditionalUpdate(_ context.Context, leadID uuid.UUID, expectedVersion int64, set LeadUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}

	lead, ok := m.leads[leadID]
	if !ok || lead.Version != expectedVersion {
		return false, nil
	}

	if set.Status != nil {
		lead.Status = *set.Status
	}
	if set.ClaimedBy != nil {
		lead.ClaimedBy = *set.ClaimedBy
	}
	if set.ClaimExpiresAt != nil {
		expires := *set.ClaimExpiresAt
		lead.ClaimExpiresAt = &expires
	}
	if set.ClearClaim {
		lead.ClaimedBy = ""
		lead.ClaimExpiresAt = nil
	}
	lead.Version++
	lead.UpdatedAt = time.Now().UTC()
	m.leads[leadID] = lead
	return true, nil
}

func (m *Memory) ExpireStaleClaims(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return 0, err
	}

	expired := 0
	for id, lead := range m.leads {
		if lead.Status != domain.StatusProcessing {
			continue
		}
		if lead.ClaimExpiresAt == nil || !lead.ClaimExpiresAt.Before(now) {
			continue
		}
		if m.hasSentLocked(id) {
			lead.Status = domain.StatusTouched
		} else {
			lead.Status = domain.StatusNew
		}
		lead.ClaimedBy = ""
		lead.ClaimExpiresAt = nil
		lead.Version++
		lead.UpdatedAt = time.Now().UTC()
		m.leads[id] = lead
		expired++
	}
	return expired, nil
}

func (m *Memory) AppendTouch(_ context.Context, touch domain.Touch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.touches = append(m.touches, touch)
	return nil
}

func (m *Memory) RecentSent(_ context.Context, leadID uuid.UUID, channel domain.Channel, within time.Duration, now time.Time) (*domain.Touch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	cutoff := now.Add(-within)
	var latest *domain.Touch
	for i := range m.touches {
		touch := m.touches[i]
		if touch.LeadID != leadID || touch.Channel != channel || touch.Outcome != domain.OutcomeSent {
			continue
		}
		if !touch.At.After(cutoff) {
			continue
		}
		if latest == nil || touch.At.After(latest.At) {
			copied := touch
			latest = &copied
		}
	}
	return latest, nil
}

func (m *Memory) HasPermanentFailure(_ context.Context, leadID uuid.UUID, channel domain.Channel) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}

	for _, touch := range m.touches {
		if touch.LeadID == leadID && touch.Channel == channel && touch.Outcome == domain.OutcomeFailedPermanent {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CampaignState(_ context.Context) (domain.CampaignState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	return m.campaign, nil
}

func (m *Memory) SetCampaignState(_ context.Context, state domain.CampaignState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.campaign = state
	return nil
}

func (m *Memory) CountByStatus(_ context.Context) (map[domain.LeadStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	counts := make(map[domain.LeadStatus]int)
	for _, lead := range m.leads {
		counts[lead.Status]++
	}
	return counts, nil
}

// Touches returns a copy of the ledger for assertions in tests.
func (m *Memory) Touches() []domain.Touch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Touch, len(m.touches))
	copy(out, m.touches)
	return out
}

func (m *Memory) hasSentLocked(leadID uuid.UUID) bool {
	for _, touch := range m.touches {
		if touch.LeadID == leadID && touch.Outcome == domain.OutcomeSent {
			return true
		}
	}
	return false
}
