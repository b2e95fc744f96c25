package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appconfig "app/internal/config"
	"app/internal/mailer"
	"app/internal/model"
	appsub "app/internal/pubsub"
	"app/internal/repository"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Worker consumes guest email delivery jobs and sends the mockup email.
// Jobs that still fail after the last retry are re-published to the
// dead-letter topic, where a push subscription forwards them to the API
// for operator review.
type Worker struct {
	cfg      *appconfig.Config
	client   *pubsub.Client
	sessions repository.GuestSessionRepository
	mail     mailer.Mailer
	logger   zerolog.Logger
}

// New creates a delivery worker.
func New(cfg *appconfig.Config, client *pubsub.Client, sessions repository.GuestSessionRepository, mail mailer.Mailer, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		mail:     mail,
		logger:   logger.With().Str("worker", "delivery").Logger(),
	}
}

// Run blocks on the delivery subscription until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	sub := w.client.Subscription(w.cfg.DeliverySubscription)
	w.logger.Info().Str("subscription", w.cfg.DeliverySubscription).Msg("Starting delivery worker")

	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := w.handle(ctx, msg.Data); err != nil {
			w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Delivery job failed, dead-lettering")
			if dlErr := w.deadLetter(ctx, msg.Data); dlErr != nil {
				// Keep the message in the subscription rather than lose it.
				w.logger.Error().Err(dlErr).Str("message_id", msg.ID).Msg("Dead-letter publish failed")
				msg.Nack()
				return
			}
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("delivery subscription receive: %w", err)
	}
	w.logger.Info().Msg("Delivery worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, data []byte) error {
	var job appsub.DeliveryJob
	if err := json.Unmarshal(data, &job); err != nil {
		// Malformed payloads never become sendable; surface them to the DLQ.
		return fmt.Errorf("unmarshal delivery job: %w", err)
	}

	session, err := w.sessions.GetByID(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", job.SessionID, err)
	}
	if session == nil {
		return fmt.Errorf("session %s not found", job.SessionID)
	}
	if session.Status == model.SessionStatusEmailSent {
		// Redelivered message; the email already went out.
		w.logger.Info().Str("session_id", job.SessionID).Msg("Email already sent, skipping")
		return nil
	}

	backoff := time.Duration(w.cfg.DeliveryBackoffInitialSec) * time.Second
	maxBackoff := time.Duration(w.cfg.DeliveryBackoffMaxSec) * time.Second
	var sendErr error
	for attempt := 1; attempt <= w.cfg.DeliveryMaxRetries; attempt++ {
		sendErr = w.mail.SendGuestMockups(job.Email, session)
		if sendErr == nil {
			break
		}
		w.logger.Error().Err(sendErr).Int("attempt", attempt).Str("session_id", job.SessionID).Msg("SMTP send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	if sendErr != nil {
		return fmt.Errorf("send after %d attempts: %w", w.cfg.DeliveryMaxRetries, sendErr)
	}

	if err := w.sessions.MarkEmailSent(ctx, job.SessionID); err != nil {
		// The email went out; log but do not dead-letter a bookkeeping failure.
		w.logger.Error().Err(err).Str("session_id", job.SessionID).Msg("Failed to mark email sent")
	}
	w.logger.Info().Str("session_id", job.SessionID).Msg("Guest mockup email delivered")
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, data []byte) error {
	topic := w.client.Topic(w.cfg.DeliveryDeadLetterTopic)
	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err := result.Get(ctx)
	return err
}
