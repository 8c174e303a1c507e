package models

import "time"

// Recipient is the push registration attached to a user account.
// An empty PushToken means no device is registered.
type Recipient struct {
	ID            string
	PushToken     string
	AlertsEnabled bool
	UpdatedAt     time.Time
}

func (r *Recipient) HasToken() bool {
	return r.PushToken != ""
}

// EligibleForAlerts reports whether alert broadcasts should reach r.
func (r *Recipient) EligibleForAlerts() bool {
	return r.HasToken() && r.AlertsEnabled
}
