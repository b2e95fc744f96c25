package model

import "time"

// Plan names. Paid plans receive a fixed credit allotment on every renewal.
const (
	PlanFree      = "free"
	PlanMonthly   = "monthly"
	PlanQuarterly = "quarterly"
	PlanSixMonths = "sixMonths"
)

// User represents an account holder. Credits is the single source of truth
// for spend authorization; it is mutated only through the credit repository
// and the Stripe webhook reconciler.
type User struct {
	UserID               string     `db:"user_id" json:"user_id"`
	Name                 string     `db:"name" json:"name"`
	Email                string     `db:"email" json:"email"`
	Plan                 string     `db:"plan" json:"plan"`
	Credits              int        `db:"credits" json:"credits"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   *string    `db:"subscription_status" json:"subscription_status,omitempty"`
	CreditsResetAt       *time.Time `db:"credits_reset_at" json:"credits_reset_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// CreditAdjustment records an operator-initiated credit grant with its reason.
type CreditAdjustment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Amount     int       `db:"amount" json:"amount"`
	Reason     string    `db:"reason" json:"reason"`
	ActorEmail string    `db:"actor_email" json:"actor_email"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
