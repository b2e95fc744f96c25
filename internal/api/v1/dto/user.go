package dto

import (
	"time"

	"app/internal/model"
)

// UserCreateDTO is used for incoming create requests
type UserCreateDTO struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// UserResponseDTO is returned in API responses
type UserResponseDTO struct {
	OK                 bool       `json:"ok"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Plan               string     `json:"plan"`
	Credits            int        `json:"credits"`
	SubscriptionStatus *string    `json:"subscription_status,omitempty"`
	CreditsResetAt     *time.Time `json:"credits_reset_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ToModel builds the account row for the authenticated subject.
func (d *UserCreateDTO) ToModel(userID string) *model.User {
	return &model.User{
		UserID: userID,
		Name:   d.Name,
		Email:  d.Email,
		Plan:   model.PlanFree,
	}
}

// NewUserResponse maps an account row into the response envelope.
func NewUserResponse(u *model.User) UserResponseDTO {
	return UserResponseDTO{
		OK:                 true,
		UserID:             u.UserID,
		Name:               u.Name,
		Email:              u.Email,
		Plan:               u.Plan,
		Credits:            u.Credits,
		SubscriptionStatus: u.SubscriptionStatus,
		CreditsResetAt:     u.CreditsResetAt,
		CreatedAt:          u.CreatedAt,
	}
}
