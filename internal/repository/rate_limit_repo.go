package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRateLimited is returned when a fingerprint exhausts its window quota.
var ErrRateLimited = errors.New("rate_limited")

// RateLimitRepository tracks per-fingerprint counters for guest actions.
type RateLimitRepository interface {
	// CheckAndIncrement atomically rolls the fixed window for the given
	// action+fingerprint and increments the counter. Returns the count after
	// the increment, or ErrRateLimited when the limit is already reached
	// within the current window.
	CheckAndIncrement(ctx context.Context, action, fingerprint string, limit int, window time.Duration) (int, error)
}

type rateLimitRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRateLimitRepo creates a new RateLimitRepository.
func NewRateLimitRepo(pool *pgxpool.Pool) RateLimitRepository {
	return &rateLimitRepo{pool: pool, now: time.Now}
}

// rollWindow applies the fixed-window policy: a counter whose window has
// elapsed resets to 1 with a fresh window start; otherwise it increments.
// allowed is false when the incremented count would exceed the limit.
func rollWindow(count int, windowStart, now time.Time, window time.Duration, limit int) (newCount int, newStart time.Time, allowed bool) {
	if now.Sub(windowStart) > window {
		return 1, now, true
	}
	if limit > 0 && count >= limit {
		return count, windowStart, false
	}
	return count + 1, windowStart, true
}

func (r *rateLimitRepo) CheckAndIncrement(ctx context.Context, action, fingerprint string, limit int, window time.Duration) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for rate limit check: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := r.now().UTC()

	var count int
	var windowStart time.Time
	const selectQ = `
        SELECT count, window_start
        FROM rate_limit_counters
        WHERE action = $1 AND fingerprint = $2
        FOR UPDATE
    `
	err = tx.QueryRow(ctx, selectQ, action, fingerprint).Scan(&count, &windowStart)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		const insertQ = `
            INSERT INTO rate_limit_counters (action, fingerprint, count, window_start)
            VALUES ($1, $2, 1, $3)
        `
		if _, err := tx.Exec(ctx, insertQ, action, fingerprint, now); err != nil {
			return 0, fmt.Errorf("creating rate limit counter %s/%s: %w", action, fingerprint, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("committing rate limit counter %s/%s: %w", action, fingerprint, err)
		}
		return 1, nil
	case err != nil:
		return 0, fmt.Errorf("reading rate limit counter %s/%s: %w", action, fingerprint, err)
	}

	newCount, newStart, allowed := rollWindow(count, windowStart, now, window, limit)
	if !allowed {
		return count, ErrRateLimited
	}

	const updateQ = `
        UPDATE rate_limit_counters
        SET count = $3, window_start = $4
        WHERE action = $1 AND fingerprint = $2
    `
	if _, err := tx.Exec(ctx, updateQ, action, fingerprint, newCount, newStart); err != nil {
		return 0, fmt.Errorf("updating rate limit counter %s/%s: %w", action, fingerprint, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing rate limit counter %s/%s: %w", action, fingerprint, err)
	}
	return newCount, nil
}
