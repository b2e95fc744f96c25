package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMockupNotFound is returned when a mockup id does not exist.
var ErrMockupNotFound = errors.New("mockup_not_found")

// MockupRepository persists member-owned artwork and mockups.
type MockupRepository interface {
	CreateArtwork(ctx context.Context, a *model.Artwork) error
	GetArtworkByID(ctx context.Context, id string) (*model.Artwork, error)
	CreateMockup(ctx context.Context, m *model.Mockup) error
	GetMockupByID(ctx context.Context, id string) (*model.Mockup, error)
	UpdateMockupURL(ctx context.Context, id, url string) error
	ListMockupsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Mockup, error)
}

type mockupRepo struct {
	pool *pgxpool.Pool
}

// NewMockupRepo creates a new MockupRepository.
func NewMockupRepo(pool *pgxpool.Pool) MockupRepository {
	return &mockupRepo{pool: pool}
}

func (r *mockupRepo) CreateArtwork(ctx context.Context, a *model.Artwork) error {
	const q = `
        INSERT INTO artworks (id, user_id, url, source_session_id)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at
    `
	if err := r.pool.QueryRow(ctx, q, a.ID, a.UserID, a.URL, a.SourceSessionID).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("create artwork for user %s: %w", a.UserID, err)
	}
	return nil
}

func (r *mockupRepo) GetArtworkByID(ctx context.Context, id string) (*model.Artwork, error) {
	const q = `
        SELECT id, user_id, url, source_session_id, created_at
        FROM artworks
        WHERE id = $1
    `
	var a model.Artwork
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.UserID, &a.URL, &a.SourceSessionID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch artwork %s: %w", id, err)
	}
	return &a, nil
}

func (r *mockupRepo) CreateMockup(ctx context.Context, m *model.Mockup) error {
	const q = `
        INSERT INTO mockups (id, user_id, artwork_id, category, url, source_session_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, m.ID, m.UserID, m.ArtworkID, m.Category, m.URL, m.SourceSessionID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create mockup for user %s: %w", m.UserID, err)
	}
	return nil
}

func (r *mockupRepo) GetMockupByID(ctx context.Context, id string) (*model.Mockup, error) {
	const q = `
        SELECT id, user_id, artwork_id, category, url, source_session_id, created_at, updated_at
        FROM mockups
        WHERE id = $1
    `
	var m model.Mockup
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&m.ID,
		&m.UserID,
		&m.ArtworkID,
		&m.Category,
		&m.URL,
		&m.SourceSessionID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMockupNotFound
		}
		return nil, fmt.Errorf("fetch mockup %s: %w", id, err)
	}
	return &m, nil
}

func (r *mockupRepo) UpdateMockupURL(ctx context.Context, id, url string) error {
	const q = `UPDATE mockups SET url = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, url)
	if err != nil {
		return fmt.Errorf("update mockup %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMockupNotFound
	}
	return nil
}

func (r *mockupRepo) ListMockupsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Mockup, error) {
	const q = `
        SELECT id, user_id, artwork_id, category, url, source_session_id, created_at, updated_at
        FROM mockups
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list mockups for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.Mockup
	for rows.Next() {
		var m model.Mockup
		if err := rows.Scan(&m.ID, &m.UserID, &m.ArtworkID, &m.Category, &m.URL, &m.SourceSessionID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan mockup row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list mockups rows error: %w", err)
	}
	return out, nil
}
