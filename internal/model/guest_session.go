package model

import "time"

// Guest session statuses.
const (
	SessionStatusGenerated    = "generated"
	SessionStatusPendingEmail = "pending_email"
	SessionStatusEmailSent    = "email_sent"
)

// MockupResult is one successfully rendered mockup for a category.
type MockupResult struct {
	Category string `json:"category"`
	URL      string `json:"url"`
}

// MockupError is a per-category generation failure kept alongside successes.
type MockupError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// GuestSession is an anonymous record linking uploaded artwork to generated
// mockups, awaiting either email delivery or an account claim. Once ClaimedBy
// is set the session is immutable.
type GuestSession struct {
	ID         string         `db:"id" json:"id"`
	ArtworkURL string         `db:"artwork_url" json:"artwork_url"`
	Results    []MockupResult `db:"results" json:"results"`
	Errors     []MockupError  `db:"errors" json:"errors"`
	Status     string         `db:"status" json:"status"`
	Email      *string        `db:"email" json:"email,omitempty"`
	ClaimedBy  *string        `db:"claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt  *time.Time     `db:"claimed_at" json:"claimed_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
