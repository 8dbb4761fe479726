package cycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"outreach_backend/internal/outreach/claim"
	"outreach_backend/internal/outreach/dispatch"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/policy"
	"outreach_backend/internal/outreach/store"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/clock"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

func runnerSettings() config.OutreachSettings {
	alwaysOpen := config.Window{
		StartMinute: 0,
		EndMinute:   24 * 60,
		Days:        [7]bool{true, true, true, true, true, true, true},
	}
	return config.OutreachSettings{
		LeaseTTL:        time.Minute,
		BatchCapacity:   50,
		WorkerCount:     3,
		CycleInterval:   5 * time.Minute,
		CycleDeadline:   time.Minute,
		Timezone:        "UTC",
		ChannelPriority: []string{"sms", "email", "voice"},
		ChannelWindows: map[string]config.Window{
			"sms":   alwaysOpen,
			"voice": alwaysOpen,
		},
		CooldownByChannel: map[string]time.Duration{
			"sms":   72 * time.Hour,
			"email": 168 * time.Hour,
			"voice": 168 * time.Hour,
		},
		RetryMaxAttempts:  2,
		RetryBaseDelay:    time.Millisecond,
		SendRatePerSecond: 1000,
		Location:          time.UTC,
	}
}

type okSender struct{}

func (okSender) Send(_ context.Context, _ domain.Lead, _ dispatch.Content) (dispatch.SendResult, error) {
	return dispatch.SendResult{ProviderID: "msg"}, nil
}

func newRunner(t *testing.T, st *store.Memory) *Runner {
	t.Helper()

	settings := runnerSettings()
	log := logger.New("test")
	clk := clock.System{}

	engine, err := policy.New(settings)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	senders := dispatch.Senders{domain.ChannelEmail: okSender{}}
	content := dispatch.StaticProvider{EmailSubject: "hello", Body: "hi"}
	manager := claim.NewManager(st, clk, settings.LeaseTTL, log)
	pool := dispatch.NewPool(st, manager, engine, senders, content, clk, settings, log)

	return NewRunner(st, manager, pool, clk, settings, log)
}

func seed(t *testing.T, st *store.Memory, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		email := fmt.Sprintf("lead%d@example.com", i)
		if _, err := st.InsertLead(context.Background(), store.InsertLeadParams{
			FirstName: fmt.Sprintf("lead-%d", i),
			Email:     &email,
		}); err != nil {
			t.Fatalf("insert lead: %v", err)
		}
	}
}

func TestRunCycle_ProcessesBatch(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 5)
	runner := newRunner(t, st)

	summary, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if summary.Claimed != 5 || summary.Released != 5 {
		t.Fatalf("expected 5 claimed and released, got claimed=%d released=%d", summary.Claimed, summary.Released)
	}
	if summary.ByOutcome["contacted"] != 5 {
		t.Fatalf("expected 5 contacted, got %v", summary.ByOutcome)
	}
	if summary.StatusCounts[domain.StatusContacted] != 5 {
		t.Fatalf("expected 5 contacted leads in status counts, got %v", summary.StatusCounts)
	}
	if summary.CycleID == "" {
		t.Fatal("expected a cycle id")
	}
}

func TestRunCycle_SecondTriggerFindsNothing(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 3)
	runner := newRunner(t, st)

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	touchesAfterFirst := len(st.Touches())

	summary, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if summary.Claimed != 0 || summary.Released != 0 {
		t.Fatalf("expected an empty second cycle, got claimed=%d released=%d", summary.Claimed, summary.Released)
	}
	if got := len(st.Touches()); got != touchesAfterFirst {
		t.Fatalf("second cycle must not touch anyone: %d -> %d", touchesAfterFirst, got)
	}
}

func TestRunCycle_PausedCampaignSkips(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 3)
	if err := st.SetCampaignState(context.Background(), domain.CampaignPaused); err != nil {
		t.Fatalf("pause: %v", err)
	}
	runner := newRunner(t, st)

	summary, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if summary.State != domain.CampaignPaused {
		t.Fatalf("expected paused state in summary, got %s", summary.State)
	}
	if summary.Claimed != 0 {
		t.Fatalf("expected no claims while paused, got %d", summary.Claimed)
	}
	if len(st.Touches()) != 0 {
		t.Fatal("expected no touches while paused")
	}

	leads, err := st.FindEligible(context.Background(), domain.EligibleStatuses(), time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("find eligible: %v", err)
	}
	if len(leads) != 3 {
		t.Fatalf("expected all leads still eligible, got %d", len(leads))
	}
}

func TestRunCycle_StoreOutageAborts(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 3)
	runner := newRunner(t, st)

	st.FailNext(errors.New("connection refused"))

	_, err := runner.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected error when the store is unavailable")
	}
	if apperr.GetKind(err) != apperr.KindUnavailable {
		t.Fatalf("expected unavailable kind, got %v", apperr.GetKind(err))
	}
}

func TestRunCycle_MixedBatchOneTouchPerLead(t *testing.T) {
	st := store.NewMemory()

	for i := 0; i < 5; i++ {
		phone := fmt.Sprintf("+1202555010%d", i)
		if _, err := st.InsertLead(context.Background(), store.InsertLeadParams{
			FirstName: fmt.Sprintf("caller-%d", i),
			Phone:     &phone,
		}); err != nil {
			t.Fatalf("insert lead: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		email := fmt.Sprintf("reader%d@example.com", i)
		if _, err := st.InsertLead(context.Background(), store.InsertLeadParams{
			FirstName: fmt.Sprintf("reader-%d", i),
			Email:     &email,
		}); err != nil {
			t.Fatalf("insert lead: %v", err)
		}
	}

	settings := runnerSettings()
	log := logger.New("test")
	clk := clock.System{}
	engine, err := policy.New(settings)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	senders := dispatch.Senders{
		domain.ChannelSMS:   okSender{},
		domain.ChannelEmail: okSender{},
	}
	content := dispatch.StaticProvider{EmailSubject: "hello", Body: "hi"}
	manager := claim.NewManager(st, clk, settings.LeaseTTL, log)
	pool := dispatch.NewPool(st, manager, engine, senders, content, clk, settings, log)
	runner := NewRunner(st, manager, pool, clk, settings, log)

	summary, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if summary.Claimed != 10 || summary.Released != 10 {
		t.Fatalf("expected all 10 leads processed, got claimed=%d released=%d", summary.Claimed, summary.Released)
	}
	if summary.StatusCounts[domain.StatusProcessing] != 0 {
		t.Fatalf("expected no processing leftovers, got %v", summary.StatusCounts)
	}

	byChannel := make(map[domain.Channel]int)
	for _, touch := range st.Touches() {
		if touch.Outcome != domain.OutcomeSent {
			t.Fatalf("expected only sent touches, got %+v", touch)
		}
		byChannel[touch.Channel]++
	}
	if byChannel[domain.ChannelSMS] != 5 || byChannel[domain.ChannelEmail] != 5 {
		t.Fatalf("expected 5 sms and 5 email touches, got %v", byChannel)
	}
	if len(st.Touches()) != 10 {
		t.Fatalf("expected exactly one touch per lead, got %d", len(st.Touches()))
	}
}

func TestRunCycle_RecoversStaleClaims(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, 1)
	runner := newRunner(t, st)

	// A previous worker crashed mid-lease.
	leads, err := st.FindEligible(context.Background(), domain.EligibleStatuses(), time.Now().UTC(), 1)
	if err != nil || len(leads) != 1 {
		t.Fatalf("find eligible: leads=%d err=%v", len(leads), err)
	}
	status := domain.StatusProcessing
	worker := "crashed-cycle"
	past := time.Now().UTC().Add(-time.Hour)
	if ok, err := st.ConditionalUpdate(context.Background(), leads[0].ID, leads[0].Version, store.LeadUpdate{
		Status: &status, ClaimedBy: &worker, ClaimExpiresAt: &past,
	}); err != nil || !ok {
		t.Fatalf("simulate crash: ok=%v err=%v", ok, err)
	}

	summary, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if summary.Claimed != 1 {
		t.Fatalf("expected the stale lead reclaimed, got claimed=%d", summary.Claimed)
	}
	lead, err := st.GetLead(context.Background(), leads[0].ID)
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if lead.Status != domain.StatusContacted {
		t.Fatalf("expected contacted after recovery, got %s", lead.Status)
	}
}
