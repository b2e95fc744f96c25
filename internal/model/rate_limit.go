package model

import "time"

// Rate-limited guest actions. Each action keeps its own counter per
// fingerprint.
const (
	ActionGuestGenerate = "guest_generate"
	ActionGuestEmail    = "guest_email"
)

// RateLimitCounter is a fixed-window counter keyed by action + fingerprint.
// The window is anchored at the first action, not rolling.
type RateLimitCounter struct {
	Action      string    `db:"action" json:"action"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	Count       int       `db:"count" json:"count"`
	WindowStart time.Time `db:"window_start" json:"window_start"`
}
