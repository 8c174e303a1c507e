package models

import (
	"strings"
	"time"
)

type AlertSeverity string

const (
	AlertSeverityMinor    AlertSeverity = "Minor"
	AlertSeverityModerate AlertSeverity = "Moderate"
	AlertSeveritySevere   AlertSeverity = "Severe"
	AlertSeverityExtreme  AlertSeverity = "Extreme"
)

// Stored column widths, in characters.
const (
	MaxEventLen    = 200
	MaxHeadlineLen = 500
	MaxAreaLen     = 500
)

var severities = []AlertSeverity{
	AlertSeverityMinor,
	AlertSeverityModerate,
	AlertSeveritySevere,
	AlertSeverityExtreme,
}

// ParseSeverity matches s case-insensitively against the known levels.
func ParseSeverity(s string) (AlertSeverity, bool) {
	for _, sev := range severities {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, true
		}
	}
	return "", false
}

// Rank orders severities from Minor (1) to Extreme (4). Unknown values rank 0.
func (s AlertSeverity) Rank() int {
	for i, sev := range severities {
		if s == sev {
			return i + 1
		}
	}
	return 0
}

// AtLeast reports whether s is as severe as threshold. An empty threshold matches all.
func (s AlertSeverity) AtLeast(threshold AlertSeverity) bool {
	return threshold == "" || s.Rank() >= threshold.Rank()
}

// Severities returns the valid severity levels, lowest first.
func Severities() []AlertSeverity {
	out := make([]AlertSeverity, len(severities))
	copy(out, severities)
	return out
}

type Alert struct {
	ID          string // generated UUID
	SourceID    string // unique ID from the feed (e.g. NWS urn)
	Event       string
	Headline    string
	Description string
	Severity    AlertSeverity
	Area        string
	CreatedAt   time.Time
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
