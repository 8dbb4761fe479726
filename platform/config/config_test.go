package config

import (
	"testing"
	"time"
)

func TestParseWindow_HoursAndDayRange(t *testing.T) {
	w, err := parseWindow("08:00-18:00", "Mon-Sat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.StartMinute != 8*60 || w.EndMinute != 18*60 {
		t.Fatalf("expected 480-1080, got %d-%d", w.StartMinute, w.EndMinute)
	}
	want := [7]bool{false, true, true, true, true, true, true}
	if w.Days != want {
		t.Fatalf("expected Mon-Sat, got %v", w.Days)
	}
}

func TestParseWindow_DayRangeWrapsWeek(t *testing.T) {
	w, err := parseWindow("09:00-17:00", "Sat-Mon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [7]bool{true, true, false, false, false, false, true}
	if w.Days != want {
		t.Fatalf("expected Sat,Sun,Mon, got %v", w.Days)
	}
}

func TestParseWindow_DayList(t *testing.T) {
	w, err := parseWindow("09:00-17:00", "Mon,Wed,Fri")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [7]bool{false, true, false, true, false, true, false}
	if w.Days != want {
		t.Fatalf("expected Mon,Wed,Fri, got %v", w.Days)
	}
}

func TestParseWindow_RejectsInvertedWindow(t *testing.T) {
	if _, err := parseWindow("18:00-08:00", "Mon-Fri"); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestWindowContains_TimezoneConversion(t *testing.T) {
	w, err := parseWindow("09:00-17:00", "Mon-Fri")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2026-01-05 14:30 UTC is Monday 09:30 in New York.
	if !w.Contains(time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC), loc) {
		t.Fatal("expected 09:30 local to be inside the window")
	}
	// 2026-01-05 13:30 UTC is Monday 08:30 in New York.
	if w.Contains(time.Date(2026, 1, 5, 13, 30, 0, 0, time.UTC), loc) {
		t.Fatal("expected 08:30 local to be outside the window")
	}
}

func TestParseFallbackRules(t *testing.T) {
	rules, err := parseFallbackRules("sms:failed_permanent>email, voice:failed_permanent>sms")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0] != (FallbackRule{OnChannel: "sms", OnOutcome: "failed_permanent", ThenChannel: "email"}) {
		t.Fatalf("unexpected first rule: %+v", rules[0])
	}
	if rules[1] != (FallbackRule{OnChannel: "voice", OnOutcome: "failed_permanent", ThenChannel: "sms"}) {
		t.Fatalf("unexpected second rule: %+v", rules[1])
	}
}

func TestParseFallbackRules_Empty(t *testing.T) {
	rules, err := parseFallbackRules("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules != nil {
		t.Fatalf("expected no rules, got %v", rules)
	}
}

func TestParseFallbackRules_Malformed(t *testing.T) {
	if _, err := parseFallbackRules("sms>email"); err == nil {
		t.Fatal("expected error for rule without an outcome")
	}
}

func TestLoadOutreach_Defaults(t *testing.T) {
	settings, err := loadOutreach()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LeaseTTL != 2*time.Minute {
		t.Fatalf("expected default lease TTL 2m, got %s", settings.LeaseTTL)
	}
	if settings.BatchCapacity != 50 || settings.WorkerCount != 5 {
		t.Fatalf("unexpected batch defaults: capacity=%d workers=%d", settings.BatchCapacity, settings.WorkerCount)
	}
	if len(settings.ChannelPriority) != 3 || settings.ChannelPriority[0] != "sms" {
		t.Fatalf("unexpected priority: %v", settings.ChannelPriority)
	}
	if settings.CooldownByChannel["sms"] != 72*time.Hour {
		t.Fatalf("expected 72h sms cooldown, got %s", settings.CooldownByChannel["sms"])
	}
	if settings.Location == nil {
		t.Fatal("expected resolved location")
	}
}

func TestLoadOutreach_DeadlineMustFitInterval(t *testing.T) {
	t.Setenv("OUTREACH_CYCLE_INTERVAL", "1m")
	t.Setenv("OUTREACH_CYCLE_DEADLINE", "5m")

	if _, err := loadOutreach(); err == nil {
		t.Fatal("expected error when the deadline exceeds the interval")
	}
}
