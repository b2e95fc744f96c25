package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxVariations bounds how many variations one request may charge for.
const maxVariations = 10

// ErrTooManyVariations is returned when a batch exceeds maxVariations.
var ErrTooManyVariations = fmt.Errorf("too_many_variations: at most %d", maxVariations)

// GenerationOutcome is the result of a member generation batch.
type GenerationOutcome struct {
	Artwork   *model.Artwork
	Mockups   []model.Mockup
	Errors    []model.MockupError
	Remaining int
}

// MockupService drives paid generation: credit reservation, rendering,
// persistence and refunds for failed units.
type MockupService interface {
	Generate(ctx context.Context, userID, artworkURL string, categories []string, variations int) (*GenerationOutcome, error)
	Edit(ctx context.Context, userID, mockupID string) (*model.Mockup, error)
	CreateArtworkUpload(ctx context.Context, userID, filename string) (*model.Artwork, string, error)
}

type mockupService struct {
	credits       repository.CreditRepository
	mockups       repository.MockupRepository
	generator     Generator
	presignClient *s3.PresignClient
	bucket        string
	publicBase    string
	logger        zerolog.Logger
}

// NewMockupService creates a new MockupService.
func NewMockupService(
	credits repository.CreditRepository,
	mockups repository.MockupRepository,
	generator Generator,
	s3Client *s3.Client,
	cfg *config.Config,
	logger zerolog.Logger,
) MockupService {
	return &mockupService{
		credits:       credits,
		mockups:       mockups,
		generator:     generator,
		presignClient: s3.NewPresignClient(s3Client),
		bucket:        cfg.S3Bucket,
		publicBase:    strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		logger:        logger.With().Str("service", "MockupService").Logger(),
	}
}

func (s *mockupService) Generate(ctx context.Context, userID, artworkURL string, categories []string, variations int) (*GenerationOutcome, error) {
	if variations < 1 {
		variations = 1
	}
	if variations > maxVariations {
		return nil, ErrTooManyVariations
	}
	for _, category := range categories {
		if !KnownCategory(category) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
	}

	// One credit per variation, reserved up front so concurrent requests
	// cannot both spend the same balance. Failed units are refunded below.
	cost := len(categories) * variations
	if err := s.credits.Reserve(ctx, userID, cost); err != nil {
		return nil, err
	}

	artwork := &model.Artwork{
		ID:     uuid.NewString(),
		UserID: userID,
		URL:    artworkURL,
	}
	if err := s.mockups.CreateArtwork(ctx, artwork); err != nil {
		// Nothing was rendered; the whole reservation comes back.
		if rerr := s.credits.Refund(ctx, userID, cost); rerr != nil {
			s.logger.Error().Err(rerr).Str("user_id", userID).Int("amount", cost).Msg("Failed to refund after artwork persistence error")
		}
		return nil, err
	}

	outcome := &GenerationOutcome{Artwork: artwork}
	for _, category := range categories {
		for i := 0; i < variations; i++ {
			resultURL, err := s.generator.RenderMockup(ctx, artworkURL, category)
			if err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID).Str("category", category).Msg("Member mockup generation failed")
				outcome.Errors = append(outcome.Errors, model.MockupError{Category: category, Message: err.Error()})
				continue
			}
			m := model.Mockup{
				ID:        uuid.NewString(),
				UserID:    userID,
				ArtworkID: artwork.ID,
				Category:  category,
				URL:       resultURL,
			}
			if err := s.mockups.CreateMockup(ctx, &m); err != nil {
				s.logger.Error().Err(err).Str("user_id", userID).Str("category", category).Msg("Failed to persist mockup")
				outcome.Errors = append(outcome.Errors, model.MockupError{Category: category, Message: "failed to store mockup"})
				continue
			}
			outcome.Mockups = append(outcome.Mockups, m)
		}
	}

	// Deduction only sticks for successful units.
	if failed := cost - len(outcome.Mockups); failed > 0 {
		if err := s.credits.Refund(ctx, userID, failed); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Int("amount", failed).Msg("Failed to refund failed generation units")
		}
	}

	if len(outcome.Mockups) == 0 {
		return nil, ErrAllGenerationsFailed
	}

	remaining, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read balance after generation")
	}
	outcome.Remaining = remaining
	return outcome, nil
}

func (s *mockupService) Edit(ctx context.Context, userID, mockupID string) (*model.Mockup, error) {
	m, err := s.mockups.GetMockupByID(ctx, mockupID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		// Do not leak existence of other users' mockups.
		return nil, repository.ErrMockupNotFound
	}

	artwork, err := s.mockups.GetArtworkByID(ctx, m.ArtworkID)
	if err != nil {
		return nil, err
	}
	if artwork == nil {
		return nil, repository.ErrMockupNotFound
	}

	if err := s.credits.Reserve(ctx, userID, 1); err != nil {
		return nil, err
	}
	resultURL, err := s.generator.RenderMockup(ctx, artwork.URL, m.Category)
	if err != nil {
		if rerr := s.credits.Refund(ctx, userID, 1); rerr != nil {
			s.logger.Error().Err(rerr).Str("user_id", userID).Msg("Failed to refund after edit failure")
		}
		return nil, fmt.Errorf("re-render mockup %s: %w", mockupID, err)
	}
	if err := s.mockups.UpdateMockupURL(ctx, mockupID, resultURL); err != nil {
		return nil, err
	}
	m.URL = resultURL
	return m, nil
}

func (s *mockupService) CreateArtworkUpload(ctx context.Context, userID, filename string) (*model.Artwork, string, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return nil, "", ErrInvalidArtworkURL
	}

	key := fmt.Sprintf("artworks/%s/%s%s", userID, uuid.NewString(), ext)
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to presign artwork upload")
		return nil, "", fmt.Errorf("presign artwork upload: %w", err)
	}

	artwork := &model.Artwork{
		ID:     uuid.NewString(),
		UserID: userID,
		URL:    s.publicBase + "/" + key,
	}
	if err := s.mockups.CreateArtwork(ctx, artwork); err != nil {
		return nil, "", err
	}
	return artwork, req.URL, nil
}
