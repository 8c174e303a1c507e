package models

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"toolong", 3, "too"},
		{"héllo wörld", 5, "héllo"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}

	long := strings.Repeat("ü", 600)
	if got := Truncate(long, MaxHeadlineLen); len([]rune(got)) != MaxHeadlineLen {
		t.Errorf("expected %d runes, got %d", MaxHeadlineLen, len([]rune(got)))
	}
}

func TestParseSeverity(t *testing.T) {
	if sev, ok := ParseSeverity("severe"); !ok || sev != AlertSeveritySevere {
		t.Errorf("expected Severe, got %q (ok=%v)", sev, ok)
	}
	if sev, ok := ParseSeverity(" Extreme "); !ok || sev != AlertSeverityExtreme {
		t.Errorf("expected Extreme, got %q (ok=%v)", sev, ok)
	}
	if _, ok := ParseSeverity("Unknown"); ok {
		t.Error("expected Unknown to be rejected")
	}
	if _, ok := ParseSeverity(""); ok {
		t.Error("expected empty severity to be rejected")
	}
}

func TestRecipient_Eligibility(t *testing.T) {
	tests := []struct {
		name string
		r    Recipient
		want bool
	}{
		{"token and opted in", Recipient{PushToken: "tok", AlertsEnabled: true}, true},
		{"token opted out", Recipient{PushToken: "tok", AlertsEnabled: false}, false},
		{"no token", Recipient{AlertsEnabled: true}, false},
	}
	for _, tt := range tests {
		if got := tt.r.EligibleForAlerts(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestAlertSeverity_AtLeast(t *testing.T) {
	tests := []struct {
		sev, min AlertSeverity
		want     bool
	}{
		{AlertSeverityMinor, "", true},
		{AlertSeverityMinor, AlertSeverityModerate, false},
		{AlertSeveritySevere, AlertSeverityModerate, true},
		{AlertSeverityExtreme, AlertSeverityExtreme, true},
		{AlertSeverity("Unknown"), AlertSeverityMinor, false},
	}
	for _, tt := range tests {
		if got := tt.sev.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.sev, tt.min, got, tt.want)
		}
	}
}
