package dto

import "app/internal/model"

// GenerateMemberMockupsRequest generates paid mockups, one credit per
// variation.
type GenerateMemberMockupsRequest struct {
	ArtworkURL string   `json:"artwork_url" validate:"required,url"`
	Categories []string `json:"categories" validate:"required,min=1,max=8,dive,required"`
	Variations int      `json:"variations" validate:"omitempty,min=1,max=10"`
}

// MemberMockupsResponse reports a generation batch with best-effort errors.
type MemberMockupsResponse struct {
	OK        bool                `json:"ok"`
	ArtworkID string              `json:"artwork_id"`
	Mockups   []model.Mockup      `json:"mockups"`
	Errors    []model.MockupError `json:"errors"`
	Remaining int                 `json:"remaining_credits"`
}

// EditMockupRequest re-renders one existing mockup for one credit.
type EditMockupRequest struct {
	MockupID string `json:"mockup_id" validate:"required"`
}

// EditMockupResponse returns the updated mockup.
type EditMockupResponse struct {
	OK     bool         `json:"ok"`
	Mockup model.Mockup `json:"mockup"`
}

// ArtworkUploadRequest asks for a presigned artwork upload URL.
type ArtworkUploadRequest struct {
	Filename string `json:"filename" validate:"required"`
}

// ArtworkUploadResponse carries the presigned PUT URL and the artwork record.
type ArtworkUploadResponse struct {
	OK         bool   `json:"ok"`
	ArtworkID  string `json:"artwork_id"`
	ArtworkURL string `json:"artwork_url"`
	UploadURL  string `json:"upload_url"`
}
