package policy

import (
	"testing"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"
)

func testSettings() config.OutreachSettings {
	return config.OutreachSettings{
		ChannelPriority: []string{"sms", "email", "voice"},
		ChannelWindows: map[string]config.Window{
			"sms": {
				StartMinute: 8 * 60,
				EndMinute:   18 * 60,
				Days:        [7]bool{false, true, true, true, true, true, true}, // Mon-Sat
			},
			"voice": {
				StartMinute: 9 * 60,
				EndMinute:   17 * 60,
				Days:        [7]bool{false, true, true, true, true, true, false}, // Mon-Fri
			},
		},
		Timezone: "UTC",
		Location: time.UTC,
	}
}

func leadWith(email, phone string) domain.Lead {
	lead := domain.Lead{Status: domain.StatusNew}
	if email != "" {
		lead.Email = &email
	}
	if phone != "" {
		lead.Phone = &phone
	}
	return lead
}

// 2026-01-05 is a Monday.
var monday10am = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func TestEligibleChannels_FullContactInsideWindows(t *testing.T) {
	engine, err := New(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.EligibleChannels(leadWith("a@example.com", "+12025550123"), monday10am)

	want := []domain.Channel{domain.ChannelSMS, domain.ChannelEmail, domain.ChannelVoice}
	if len(got) != len(want) {
		t.Fatalf("expected %d channels, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected priority order %v, got %v", want, got)
		}
	}
}

func TestEligibleChannels_EmailIgnoresWindows(t *testing.T) {
	engine, err := New(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sundayNight := time.Date(2026, 1, 4, 23, 30, 0, 0, time.UTC)
	got := engine.EligibleChannels(leadWith("a@example.com", "+12025550123"), sundayNight)

	if len(got) != 1 || got[0] != domain.ChannelEmail {
		t.Fatalf("expected only email outside phone windows, got %v", got)
	}
}

func TestEligibleChannels_PhoneChannelsNeedPhone(t *testing.T) {
	engine, err := New(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := engine.EligibleChannels(leadWith("a@example.com", ""), monday10am)

	if len(got) != 1 || got[0] != domain.ChannelEmail {
		t.Fatalf("expected only email without a phone number, got %v", got)
	}
}

func TestEligibleChannels_NoContactInfo(t *testing.T) {
	engine, err := New(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := engine.EligibleChannels(leadWith("", ""), monday10am); len(got) != 0 {
		t.Fatalf("expected no eligible channels, got %v", got)
	}
}

func TestEligible_WindowEdges(t *testing.T) {
	engine, err := New(testSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lead := leadWith("", "+12025550123")

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start inclusive", time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), true},
		{"end exclusive", time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC), false},
		{"last minute", time.Date(2026, 1, 5, 17, 59, 0, 0, time.UTC), true},
		{"before open", time.Date(2026, 1, 5, 7, 59, 0, 0, time.UTC), false},
		{"saturday active", time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC), true},
		{"sunday inactive", time.Date(2026, 1, 11, 10, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Eligible(lead, domain.ChannelSMS, tc.at); got != tc.want {
				t.Fatalf("expected eligible=%v at %s, got %v", tc.want, tc.at, got)
			}
		})
	}
}

func TestEligible_WindowRespectsTimezone(t *testing.T) {
	settings := testSettings()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	settings.Timezone = "America/New_York"
	settings.Location = loc

	engine, err := New(settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lead := leadWith("", "+12025550123")

	// 14:00 UTC on a Monday is 09:00 in New York: inside the local window
	// even though a naive UTC reading would also pass. 03:00 UTC is 22:00
	// Sunday local and must be rejected.
	inWindow := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	if !engine.Eligible(lead, domain.ChannelSMS, inWindow) {
		t.Fatal("expected sms eligible at 09:00 local time")
	}

	outOfWindow := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
	if engine.Eligible(lead, domain.ChannelSMS, outOfWindow) {
		t.Fatal("expected sms ineligible at 22:00 local time on Sunday")
	}
}

func TestNew_RejectsUnknownChannel(t *testing.T) {
	settings := testSettings()
	settings.ChannelPriority = []string{"sms", "fax"}

	if _, err := New(settings); err == nil {
		t.Fatal("expected error for unknown channel in priority order")
	}
}
