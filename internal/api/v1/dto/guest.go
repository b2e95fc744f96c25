package dto

import "app/internal/model"

// GenerateGuestMockupsRequest starts an anonymous generation session.
type GenerateGuestMockupsRequest struct {
	ArtworkURL string   `json:"artwork_url" validate:"required,url"`
	Categories []string `json:"categories" validate:"required,min=1,max=8,dive,required"`
}

// GuestSessionResponse is returned for guest generation and claim.
type GuestSessionResponse struct {
	OK        bool                 `json:"ok"`
	SessionID string               `json:"session_id"`
	Status    string               `json:"status"`
	Results   []model.MockupResult `json:"results"`
	Errors    []model.MockupError  `json:"errors"`
}

// SendGuestMockupsRequest asks for a session's results by email.
type SendGuestMockupsRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// ClaimGuestSessionRequest absorbs a guest session into the caller's account.
type ClaimGuestSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}
