package model

import "time"

// DeadLetterMessage stores an email-delivery job that exhausted its retries,
// as pushed by the Pub/Sub dead-letter subscription.
type DeadLetterMessage struct {
	ID               int64     `db:"id" json:"id"`
	SubscriptionName string    `db:"subscription_name" json:"subscription_name"`
	MessageID        string    `db:"message_id" json:"message_id"`
	Payload          string    `db:"payload" json:"payload"`
	Attributes       *string   `db:"attributes" json:"attributes,omitempty"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
