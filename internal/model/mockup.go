package model

import "time"

// Artwork is a user-owned source image. Claimed guest artwork is copied here
// rather than referenced, so ownership transfers by duplication.
type Artwork struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	URL             string    `db:"url" json:"url"`
	SourceSessionID *string   `db:"source_session_id" json:"source_session_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Mockup is one rendered product mockup owned by a user.
type Mockup struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ArtworkID       string    `db:"artwork_id" json:"artwork_id"`
	Category        string    `db:"category" json:"category"`
	URL             string    `db:"url" json:"url"`
	SourceSessionID *string   `db:"source_session_id" json:"source_session_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
