package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientCredits is returned when a reservation exceeds the balance.
var ErrInsufficientCredits = errors.New("insufficient_credits")

// ErrUserNotFound is returned when a ledger operation targets an unknown user.
var ErrUserNotFound = errors.New("user_not_found")

// CreditRepository holds every mutation of the credit balance. The balance is
// never touched outside this repository and the Stripe reconciler paths that
// call into it.
type CreditRepository interface {
	// GetBalance returns the user's current credit balance.
	GetBalance(ctx context.Context, userID string) (int, error)
	// Reserve decrements the balance by amount, failing with
	// ErrInsufficientCredits when the balance is lower. The guard and the
	// decrement are a single statement, so two concurrent reservations can
	// never both pass against a balance that covers only one of them.
	Reserve(ctx context.Context, userID string, amount int) error
	// Refund returns credits reserved for units that failed to generate.
	Refund(ctx context.Context, userID string, amount int) error
	// Grant atomically adds credits (top-ups, signup bonuses).
	Grant(ctx context.Context, userID string, amount int) error
	// GrantWithReason adds credits and records an adjustment row for the
	// operator audit trail, in one transaction.
	GrantWithReason(ctx context.Context, adj *model.CreditAdjustment) error
	// SetPlanCredits sets the plan and balance absolutely on subscription
	// renewal. Unused credits do not roll over.
	SetPlanCredits(ctx context.Context, userID, plan string, credits int, resetAt time.Time, subscriptionID, status string) error
	// ClearSubscription downgrades to the free plan on subscription deletion.
	// Already-granted credits remain spendable.
	ClearSubscription(ctx context.Context, userID string) error
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

func (r *creditRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	const q = `SELECT credits FROM user_accounts WHERE user_id = $1`
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("fetch balance for user %s: %w", userID, err)
	}
	return balance, nil
}

func (r *creditRepo) Reserve(ctx context.Context, userID string, amount int) error {
	const q = `
        UPDATE user_accounts
        SET credits = credits - $2, updated_at = NOW()
        WHERE user_id = $1 AND credits >= $2
    `
	tag, err := r.pool.Exec(ctx, q, userID, amount)
	if err != nil {
		return fmt.Errorf("reserve %d credits for user %s: %w", amount, userID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		const existsQ = `SELECT EXISTS (SELECT 1 FROM user_accounts WHERE user_id = $1)`
		if err := r.pool.QueryRow(ctx, existsQ, userID).Scan(&exists); err != nil {
			return fmt.Errorf("check user %s after failed reservation: %w", userID, err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientCredits
	}
	return nil
}

func (r *creditRepo) Refund(ctx context.Context, userID string, amount int) error {
	return r.Grant(ctx, userID, amount)
}

func (r *creditRepo) Grant(ctx context.Context, userID string, amount int) error {
	const q = `
        UPDATE user_accounts
        SET credits = credits + $2, updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, amount)
	if err != nil {
		return fmt.Errorf("grant %d credits to user %s: %w", amount, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *creditRepo) GrantWithReason(ctx context.Context, adj *model.CreditAdjustment) error {
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin adjustment transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const grantQ = `
        UPDATE user_accounts
        SET credits = credits + $2, updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := tx.Exec(ctx, grantQ, adj.UserID, adj.Amount)
	if err != nil {
		return fmt.Errorf("grant %d credits to user %s: %w", adj.Amount, adj.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	const auditQ = `
        INSERT INTO credit_adjustments (id, user_id, amount, reason, actor_email)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := tx.Exec(ctx, auditQ, adj.ID, adj.UserID, adj.Amount, adj.Reason, adj.ActorEmail); err != nil {
		return fmt.Errorf("record adjustment for user %s: %w", adj.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit adjustment for user %s: %w", adj.UserID, err)
	}
	return nil
}

func (r *creditRepo) SetPlanCredits(ctx context.Context, userID, plan string, credits int, resetAt time.Time, subscriptionID, status string) error {
	const q = `
        UPDATE user_accounts
        SET plan = $2,
            credits = $3,
            credits_reset_at = $4,
            stripe_subscription_id = $5,
            subscription_status = $6,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID, plan, credits, resetAt, subscriptionID, status)
	if err != nil {
		return fmt.Errorf("set plan credits for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *creditRepo) ClearSubscription(ctx context.Context, userID string) error {
	const q = `
        UPDATE user_accounts
        SET plan = 'free',
            subscription_status = 'canceled',
            stripe_subscription_id = NULL,
            credits_reset_at = NULL,
            updated_at = NOW()
        WHERE user_id = $1
    `
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("clear subscription for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
