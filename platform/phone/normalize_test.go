package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"national format", "(202) 555-0123", "+12025550123"},
		{"already e164", "+12025550123", "+12025550123"},
		{"international", "+31612345678", "+31612345678"},
		{"whitespace trimmed", "  +12025550123  ", "+12025550123"},
		{"garbage passthrough", "not-a-number", "not-a-number"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid us number", "+12025550123", true},
		{"valid national", "(202) 555-0123", true},
		{"valid dutch mobile", "+31612345678", true},
		{"too short", "12345", false},
		{"letters", "not-a-number", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValid(tc.input); got != tc.want {
				t.Fatalf("expected %v for %q, got %v", tc.want, tc.input, got)
			}
		})
	}
}
