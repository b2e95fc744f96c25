package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"app/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrSessionNotFound is returned when no guest session exists for an id.
	ErrSessionNotFound = errors.New("session_not_found")
	// ErrSessionClaimed is returned on any mutation of a claimed session.
	ErrSessionClaimed = errors.New("session_already_claimed")
	// ErrEmailMismatch is returned when a stored session email differs from
	// the one presented.
	ErrEmailMismatch = errors.New("email_mismatch")
	// ErrEmailAlreadySent is returned when email delivery was already done.
	ErrEmailAlreadySent = errors.New("email_already_sent")
)

// GuestSessionRepository persists anonymous pre-signup sessions. A session is
// immutable once claimed; every mutation here carries that guard.
type GuestSessionRepository interface {
	Create(ctx context.Context, artworkURL string) (*model.GuestSession, error)
	GetByID(ctx context.Context, id string) (*model.GuestSession, error)
	RecordResults(ctx context.Context, id string, results []model.MockupResult, genErrors []model.MockupError) error
	// SetEmailPending stores the delivery email and moves the session to
	// pending_email. Fails with ErrEmailAlreadySent if delivery already
	// happened and ErrEmailMismatch if a different email is stored.
	SetEmailPending(ctx context.Context, id, email string) error
	MarkEmailSent(ctx context.Context, id string) error
	// Claim copies the session's artwork and every result into the claiming
	// user's own collections and marks the session claimed, all in one
	// transaction.
	Claim(ctx context.Context, id, userID, email string) (*model.GuestSession, error)
}

type guestSessionRepo struct {
	pool *pgxpool.Pool
}

// NewGuestSessionRepo creates a new GuestSessionRepository.
func NewGuestSessionRepo(pool *pgxpool.Pool) GuestSessionRepository {
	return &guestSessionRepo{pool: pool}
}

func (r *guestSessionRepo) Create(ctx context.Context, artworkURL string) (*model.GuestSession, error) {
	s := &model.GuestSession{
		ID:         uuid.NewString(),
		ArtworkURL: artworkURL,
		Status:     model.SessionStatusGenerated,
	}
	const q = `
        INSERT INTO guest_sessions (id, artwork_url, status, results, errors)
        VALUES ($1, $2, $3, '[]'::jsonb, '[]'::jsonb)
        RETURNING created_at, updated_at
    `
	if err := r.pool.QueryRow(ctx, q, s.ID, s.ArtworkURL, s.Status).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create guest session: %w", err)
	}
	return s, nil
}

func (r *guestSessionRepo) GetByID(ctx context.Context, id string) (*model.GuestSession, error) {
	const q = `
        SELECT id, artwork_url, results, errors, status, email, claimed_by, claimed_at, created_at, updated_at
        FROM guest_sessions
        WHERE id = $1
    `
	return scanSession(r.pool.QueryRow(ctx, q, id))
}

func scanSession(row pgx.Row) (*model.GuestSession, error) {
	var s model.GuestSession
	var rawResults, rawErrors []byte
	err := row.Scan(
		&s.ID,
		&s.ArtworkURL,
		&rawResults,
		&rawErrors,
		&s.Status,
		&s.Email,
		&s.ClaimedBy,
		&s.ClaimedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan guest session: %w", err)
	}
	if err := json.Unmarshal(rawResults, &s.Results); err != nil {
		return nil, fmt.Errorf("unmarshal results for session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(rawErrors, &s.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal errors for session %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *guestSessionRepo) RecordResults(ctx context.Context, id string, results []model.MockupResult, genErrors []model.MockupError) error {
	rawResults, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results for session %s: %w", id, err)
	}
	rawErrors, err := json.Marshal(genErrors)
	if err != nil {
		return fmt.Errorf("marshal errors for session %s: %w", id, err)
	}
	const q = `
        UPDATE guest_sessions
        SET results = $2, errors = $3, updated_at = NOW()
        WHERE id = $1 AND claimed_by IS NULL
    `
	tag, err := r.pool.Exec(ctx, q, id, rawResults, rawErrors)
	if err != nil {
		return fmt.Errorf("record results for session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.mutationFailure(ctx, id)
	}
	return nil
}

func (r *guestSessionRepo) SetEmailPending(ctx context.Context, id, email string) error {
	const q = `
        UPDATE guest_sessions
        SET email = $2, status = $3, updated_at = NOW()
        WHERE id = $1
          AND claimed_by IS NULL
          AND status <> $4
          AND (email IS NULL OR LOWER(email) = LOWER($2))
    `
	tag, err := r.pool.Exec(ctx, q, id, email, model.SessionStatusPendingEmail, model.SessionStatusEmailSent)
	if err != nil {
		return fmt.Errorf("set email pending for session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		s, ferr := r.GetByID(ctx, id)
		if ferr != nil {
			return ferr
		}
		switch {
		case s.ClaimedBy != nil:
			return ErrSessionClaimed
		case s.Status == model.SessionStatusEmailSent:
			return ErrEmailAlreadySent
		case s.Email != nil && !strings.EqualFold(*s.Email, email):
			return ErrEmailMismatch
		default:
			return fmt.Errorf("set email pending for session %s: no rows updated", id)
		}
	}
	return nil
}

func (r *guestSessionRepo) MarkEmailSent(ctx context.Context, id string) error {
	const q = `
        UPDATE guest_sessions
        SET status = $2, updated_at = NOW()
        WHERE id = $1 AND claimed_by IS NULL
    `
	tag, err := r.pool.Exec(ctx, q, id, model.SessionStatusEmailSent)
	if err != nil {
		return fmt.Errorf("mark email sent for session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.mutationFailure(ctx, id)
	}
	return nil
}

// mutationFailure distinguishes "session missing" from "session claimed"
// after a guarded update touched no rows.
func (r *guestSessionRepo) mutationFailure(ctx context.Context, id string) error {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.ClaimedBy != nil {
		return ErrSessionClaimed
	}
	return fmt.Errorf("update session %s: no rows updated", id)
}

func (r *guestSessionRepo) Claim(ctx context.Context, id, userID, email string) (*model.GuestSession, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQ = `
        SELECT id, artwork_url, results, errors, status, email, claimed_by, claimed_at, created_at, updated_at
        FROM guest_sessions
        WHERE id = $1
        FOR UPDATE
    `
	s, err := scanSession(tx.QueryRow(ctx, lockQ, id))
	if err != nil {
		return nil, err
	}
	if s.ClaimedBy != nil {
		return nil, ErrSessionClaimed
	}
	if s.Email != nil && !strings.EqualFold(*s.Email, email) {
		return nil, ErrEmailMismatch
	}

	// Ownership transfers by copy: the claimer gets their own artwork row and
	// one mockup row per generated result.
	artworkID := uuid.NewString()
	const artworkQ = `
        INSERT INTO artworks (id, user_id, url, source_session_id)
        VALUES ($1, $2, $3, $4)
    `
	if _, err := tx.Exec(ctx, artworkQ, artworkID, userID, s.ArtworkURL, s.ID); err != nil {
		return nil, fmt.Errorf("copy artwork for session %s: %w", id, err)
	}

	const mockupQ = `
        INSERT INTO mockups (id, user_id, artwork_id, category, url, source_session_id)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	for _, res := range s.Results {
		if _, err := tx.Exec(ctx, mockupQ, uuid.NewString(), userID, artworkID, res.Category, res.URL, s.ID); err != nil {
			return nil, fmt.Errorf("copy mockup (%s) for session %s: %w", res.Category, id, err)
		}
	}

	now := time.Now().UTC()
	const claimQ = `
        UPDATE guest_sessions
        SET claimed_by = $2, claimed_at = $3, updated_at = NOW()
        WHERE id = $1 AND claimed_by IS NULL
    `
	tag, err := tx.Exec(ctx, claimQ, id, userID, now)
	if err != nil {
		return nil, fmt.Errorf("mark session %s claimed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSessionClaimed
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim for session %s: %w", id, err)
	}

	s.ClaimedBy = &userID
	s.ClaimedAt = &now
	return s, nil
}
