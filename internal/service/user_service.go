package service

import (
	"context"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// UserService manages account profiles.
type UserService interface {
	// Create bootstraps an account with the signup bonus balance.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
}

type userService struct {
	repo          repository.UserRepository
	signupCredits int
	logger        zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, signupCredits int, logger zerolog.Logger) UserService {
	return &userService{
		repo:          repo,
		signupCredits: signupCredits,
		logger:        logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, u *model.User) (*model.User, error) {
	// Signup is idempotent from the client's point of view: an existing
	// profile is returned as-is, without a second bonus.
	existing, err := s.repo.GetUserByID(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	u.Credits = s.signupCredits
	if err := s.repo.CreateUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to create user account")
		return nil, err
	}
	s.logger.Info().Str("user_id", u.UserID).Int("credits", u.Credits).Msg("Account created with signup bonus")
	return u, nil
}

func (s *userService) Get(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}
