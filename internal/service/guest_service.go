package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// rateLimitWindow is the fixed guest rate-limit bucket size.
const rateLimitWindow = 24 * time.Hour

var (
	// ErrAllGenerationsFailed is returned when no requested category rendered.
	ErrAllGenerationsFailed = errors.New("all_generations_failed")
	// ErrArtworkHostNotAllowed is returned for artwork URLs outside the
	// configured host allowlist.
	ErrArtworkHostNotAllowed = errors.New("artwork_host_not_allowed")
	// ErrInvalidArtworkURL is returned for unparsable or non-http artwork URLs.
	ErrInvalidArtworkURL = errors.New("invalid_artwork_url")
	// ErrUnknownCategory is returned when a requested category is unsupported.
	ErrUnknownCategory = errors.New("unknown_category")
)

// GuestSessionService drives the anonymous generation flow: rate-limited
// session creation, best-effort rendering, email delivery and account claim.
type GuestSessionService interface {
	StartSession(ctx context.Context, fingerprint, artworkURL string, categories []string) (*model.GuestSession, error)
	RequestEmail(ctx context.Context, fingerprint, sessionID, email string) error
	Claim(ctx context.Context, sessionID, userID, email string) (*model.GuestSession, error)
}

type guestSessionService struct {
	sessions      repository.GuestSessionRepository
	rateLimits    repository.RateLimitRepository
	generator     Generator
	publisher     pubsub.Publisher
	deliveryTopic string
	generateLimit int
	emailLimit    int
	allowedHosts  []string
	logger        zerolog.Logger
}

// NewGuestSessionService creates a new GuestSessionService with a scoped logger.
func NewGuestSessionService(
	sessions repository.GuestSessionRepository,
	rateLimits repository.RateLimitRepository,
	generator Generator,
	publisher pubsub.Publisher,
	cfg *config.Config,
	logger zerolog.Logger,
) GuestSessionService {
	return &guestSessionService{
		sessions:      sessions,
		rateLimits:    rateLimits,
		generator:     generator,
		publisher:     publisher,
		deliveryTopic: cfg.DeliveryTopic,
		generateLimit: cfg.GuestGenerateDailyLimit,
		emailLimit:    cfg.GuestEmailDailyLimit,
		allowedHosts:  cfg.AllowedImageHostList(),
		logger:        logger.With().Str("service", "GuestSessionService").Logger(),
	}
}

// validateArtworkURL enforces http(s) and the configured host allowlist.
func (s *guestSessionService) validateArtworkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidArtworkURL
	}
	if len(s.allowedHosts) == 0 {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range s.allowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return ErrArtworkHostNotAllowed
}

func (s *guestSessionService) StartSession(ctx context.Context, fingerprint, artworkURL string, categories []string) (*model.GuestSession, error) {
	if err := s.validateArtworkURL(artworkURL); err != nil {
		return nil, err
	}
	for _, category := range categories {
		if !KnownCategory(category) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
	}

	if _, err := s.rateLimits.CheckAndIncrement(ctx, model.ActionGuestGenerate, fingerprint, s.generateLimit, rateLimitWindow); err != nil {
		if !errors.Is(err, repository.ErrRateLimited) {
			s.logger.Error().Err(err).Str("fingerprint", fingerprint).Msg("Failed to check guest generation rate limit")
		}
		return nil, err
	}

	session, err := s.sessions.Create(ctx, artworkURL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create guest session")
		return nil, err
	}

	// Best-effort batch: per-category failures are collected alongside
	// successes and only a full wipeout fails the request.
	var results []model.MockupResult
	var genErrors []model.MockupError
	for _, category := range categories {
		resultURL, err := s.generator.RenderMockup(ctx, artworkURL, category)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", session.ID).Str("category", category).Msg("Mockup generation failed for category")
			genErrors = append(genErrors, model.MockupError{Category: category, Message: err.Error()})
			continue
		}
		results = append(results, model.MockupResult{Category: category, URL: resultURL})
	}

	if len(results) == 0 {
		_ = s.sessions.RecordResults(ctx, session.ID, nil, genErrors)
		return nil, ErrAllGenerationsFailed
	}

	if err := s.sessions.RecordResults(ctx, session.ID, results, genErrors); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("Failed to record generation results")
		return nil, err
	}

	session.Results = results
	session.Errors = genErrors
	return session, nil
}

func (s *guestSessionService) RequestEmail(ctx context.Context, fingerprint, sessionID, email string) error {
	if _, err := s.rateLimits.CheckAndIncrement(ctx, model.ActionGuestEmail, fingerprint, s.emailLimit, rateLimitWindow); err != nil {
		if !errors.Is(err, repository.ErrRateLimited) {
			s.logger.Error().Err(err).Str("fingerprint", fingerprint).Msg("Failed to check guest email rate limit")
		}
		return err
	}

	if err := s.sessions.SetEmailPending(ctx, sessionID, email); err != nil {
		return err
	}

	payload, err := json.Marshal(pubsub.DeliveryJob{SessionID: sessionID, Email: email})
	if err != nil {
		return fmt.Errorf("marshal delivery job for session %s: %w", sessionID, err)
	}
	msgID, err := s.publisher.Publish(ctx, s.deliveryTopic, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to publish delivery job")
		return err
	}
	s.logger.Info().Str("session_id", sessionID).Str("msg_id", msgID).Msg("Delivery job published")
	return nil
}

func (s *guestSessionService) Claim(ctx context.Context, sessionID, userID, email string) (*model.GuestSession, error) {
	session, err := s.sessions.Claim(ctx, sessionID, userID, email)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionClaimed) &&
			!errors.Is(err, repository.ErrEmailMismatch) &&
			!errors.Is(err, repository.ErrSessionNotFound) {
			s.logger.Error().Err(err).Str("session_id", sessionID).Str("user_id", userID).Msg("Failed to claim guest session")
		}
		return nil, err
	}
	s.logger.Info().Str("session_id", sessionID).Str("user_id", userID).Int("mockups", len(session.Results)).Msg("Guest session claimed")
	return session, nil
}
