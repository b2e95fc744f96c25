package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	// CreateUser inserts a new account with the given starting credit balance.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
	UpdateSubscriptionStatus(ctx context.Context, userID, status string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	const q = `
        INSERT INTO user_accounts (user_id, name, email, plan, credits)
        VALUES ($1, $2, $3, 'free', $4)
        RETURNING user_id, name, email, plan, credits, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, u.UserID, u.Name, u.Email, u.Credits).
		Scan(&u.UserID, &u.Name, &u.Email, &u.Plan, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.UserID, err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
        SELECT user_id, name, email, plan, credits, stripe_customer_id,
               stripe_subscription_id, subscription_status, credits_reset_at,
               created_at, updated_at
        FROM user_accounts
        WHERE user_id = $1
    `
	return r.scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	const q = `
        SELECT user_id, name, email, plan, credits, stripe_customer_id,
               stripe_subscription_id, subscription_status, credits_reset_at,
               created_at, updated_at
        FROM user_accounts
        WHERE stripe_customer_id = $1
    `
	return r.scanUser(r.pool.QueryRow(ctx, q, customerID))
}

func (r *userRepo) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.UserID,
		&u.Name,
		&u.Email,
		&u.Plan,
		&u.Credits,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.SubscriptionStatus,
		&u.CreditsResetAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const q = `UPDATE user_accounts SET stripe_customer_id = $2, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, q, userID, customerID)
	if err != nil {
		return fmt.Errorf("update stripe customer id for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepo) UpdateSubscriptionStatus(ctx context.Context, userID, status string) error {
	const q = `UPDATE user_accounts SET subscription_status = $2, updated_at = NOW() WHERE user_id = $1`
	tag, err := r.pool.Exec(ctx, q, userID, status)
	if err != nil {
		return fmt.Errorf("update subscription status for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
