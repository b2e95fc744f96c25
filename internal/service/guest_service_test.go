package service

import (
	"context"
	"encoding/json"
	"testing"

	"app/internal/config"
	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuestService(t *testing.T, cfg *config.Config, gen *fakeGenerator) (GuestSessionService, *fakeSessionRepo, *fakeRateLimiter, *fakePublisher) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{
			DeliveryTopic:           "delivery",
			GuestGenerateDailyLimit: 10,
			GuestEmailDailyLimit:    5,
		}
	}
	sessions := newFakeSessionRepo()
	limiter := newFakeRateLimiter()
	publisher := &fakePublisher{}
	svc := NewGuestSessionService(sessions, limiter, gen, publisher, cfg, zerolog.Nop())
	return svc, sessions, limiter, publisher
}

func TestStartSessionPartialSuccess(t *testing.T) {
	gen := &fakeGenerator{failing: map[string]bool{"mug": true}}
	svc, sessions, _, _ := newGuestService(t, nil, gen)

	session, err := svc.StartSession(context.Background(), "fp-1", "https://img.example.com/a.png", []string{"wall_art", "apparel", "mug"})
	require.NoError(t, err)

	assert.Len(t, session.Results, 2)
	require.Len(t, session.Errors, 1)
	assert.Equal(t, "mug", session.Errors[0].Category)

	stored, err := sessions.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Results, 2)
}

func TestStartSessionAllFailed(t *testing.T) {
	gen := &fakeGenerator{failing: map[string]bool{"wall_art": true, "mug": true}}
	svc, _, _, _ := newGuestService(t, nil, gen)

	_, err := svc.StartSession(context.Background(), "fp-1", "https://img.example.com/a.png", []string{"wall_art", "mug"})
	assert.ErrorIs(t, err, ErrAllGenerationsFailed)
}

func TestStartSessionRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newGuestService(t, nil, &fakeGenerator{})

	_, err := svc.StartSession(context.Background(), "fp-1", "ftp://img.example.com/a.png", []string{"mug"})
	assert.ErrorIs(t, err, ErrInvalidArtworkURL)

	_, err = svc.StartSession(context.Background(), "fp-1", "https://img.example.com/a.png", []string{"hologram"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestStartSessionHostAllowlist(t *testing.T) {
	cfg := &config.Config{
		DeliveryTopic:           "delivery",
		GuestGenerateDailyLimit: 10,
		GuestEmailDailyLimit:    5,
		AllowedImageHosts:       "example.com, cdn.example.org",
	}
	svc, _, _, _ := newGuestService(t, cfg, &fakeGenerator{})

	_, err := svc.StartSession(context.Background(), "fp-1", "https://img.example.com/a.png", []string{"mug"})
	assert.NoError(t, err)

	_, err = svc.StartSession(context.Background(), "fp-1", "https://evil.test/a.png", []string{"mug"})
	assert.ErrorIs(t, err, ErrArtworkHostNotAllowed)
}

func TestStartSessionRateLimit(t *testing.T) {
	cfg := &config.Config{
		DeliveryTopic:           "delivery",
		GuestGenerateDailyLimit: 2,
		GuestEmailDailyLimit:    5,
	}
	gen := &fakeGenerator{}
	svc, _, _, _ := newGuestService(t, cfg, gen)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := svc.StartSession(ctx, "fp-1", "https://img.example.com/a.png", []string{"mug"})
		require.NoError(t, err)
	}
	_, err := svc.StartSession(ctx, "fp-1", "https://img.example.com/a.png", []string{"mug"})
	assert.ErrorIs(t, err, repository.ErrRateLimited)
	// The blocked request never reached the render backend.
	assert.Equal(t, 2, gen.calls)

	// A different fingerprint is unaffected.
	_, err = svc.StartSession(ctx, "fp-2", "https://img.example.com/a.png", []string{"mug"})
	assert.NoError(t, err)
}

func TestRequestEmailPublishesJob(t *testing.T) {
	svc, sessions, _, publisher := newGuestService(t, nil, &fakeGenerator{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "fp-1", "https://img.example.com/a.png", []string{"mug"})
	require.NoError(t, err)

	require.NoError(t, svc.RequestEmail(ctx, "fp-1", session.ID, "buyer@example.com"))

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "delivery", publisher.topics[0])
	var job pubsub.DeliveryJob
	require.NoError(t, json.Unmarshal(publisher.published[0], &job))
	assert.Equal(t, session.ID, job.SessionID)
	assert.Equal(t, "buyer@example.com", job.Email)

	stored, err := sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPendingEmail, stored.Status)
}

func TestRequestEmailUnknownSession(t *testing.T) {
	svc, _, _, publisher := newGuestService(t, nil, &fakeGenerator{})

	err := svc.RequestEmail(context.Background(), "fp-1", "no-such-session", "buyer@example.com")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.Empty(t, publisher.published)
}

func TestClaimSucceedsOnce(t *testing.T) {
	svc, _, _, _ := newGuestService(t, nil, &fakeGenerator{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "fp-1", "https://img.example.com/a.png", []string{"mug"})
	require.NoError(t, err)

	claimed, err := svc.Claim(ctx, session.ID, "user-1", "buyer@example.com")
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, "user-1", *claimed.ClaimedBy)

	_, err = svc.Claim(ctx, session.ID, "user-2", "other@example.com")
	assert.ErrorIs(t, err, repository.ErrSessionClaimed)
}

func TestClaimEmailMismatch(t *testing.T) {
	svc, _, _, _ := newGuestService(t, nil, &fakeGenerator{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, "fp-1", "https://img.example.com/a.png", []string{"mug"})
	require.NoError(t, err)
	require.NoError(t, svc.RequestEmail(ctx, "fp-1", session.ID, "buyer@example.com"))

	_, err = svc.Claim(ctx, session.ID, "user-1", "someone-else@example.com")
	assert.ErrorIs(t, err, repository.ErrEmailMismatch)
}
