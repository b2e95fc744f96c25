package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/cache"
	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrInvalidPlan is returned for checkout requests naming an unknown plan.
	ErrInvalidPlan = errors.New("invalid_plan")
	// ErrMissingPriceConfig is returned when the plan has no configured price.
	ErrMissingPriceConfig = errors.New("missing_price_configuration")
	// ErrNoActiveSubscription is returned when a cancel request finds nothing
	// to cancel.
	ErrNoActiveSubscription = errors.New("no_active_subscription")
)

// StripeService manages Stripe integration: checkout, cancellation, and
// webhook reconciliation of the credit ledger.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	credits  repository.CreditRepository
	deduper  cache.EventDeduper
	logger   zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, credits repository.CreditRepository, deduper cache.EventDeduper, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, userRepo: userRepo, credits: credits, deduper: deduper, logger: lg}
}

// resolveUser maps a Stripe customer id to an account. The stored customer id
// is the primary lookup; the customer's own metadata is the fallback, healing
// the stored id when it succeeds.
func (s *StripeService) resolveUser(ctx context.Context, customerID string) (*model.User, error) {
	if customerID == "" {
		return nil, errors.New("cannot determine user: missing customer id")
	}
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("lookup user by customer id: %w", err)
	}
	if u != nil {
		return u, nil
	}

	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("No account holds this customer id; falling back to customer metadata")
	cust, err := customerpkg.Get(customerID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch stripe customer %s: %w", customerID, err)
	}
	userID := cust.Metadata["user_id"]
	if userID == "" {
		return nil, fmt.Errorf("customer %s carries no user_id metadata", customerID)
	}
	u, err = s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s from customer metadata: %w", userID, err)
	}
	if u == nil {
		return nil, fmt.Errorf("no account for user id %s from customer metadata", userID)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, u.UserID, customerID); err != nil {
		s.logger.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to heal stored customer id")
	}
	return u, nil
}

// GetOrCreateCustomer ensures a Stripe customer exists for a user.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a subscription checkout session for a plan.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	switch plan {
	case model.PlanMonthly, model.PlanQuarterly, model.PlanSixMonths:
	default:
		return "", ErrInvalidPlan
	}
	priceID, ok := s.cfg.PriceForPlan(plan)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingPriceConfig, plan)
	}

	user, err := s.fetchUser(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:         stripe.String(s.cfg.CheckoutReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.CheckoutReturnURL + "?status=cancel"),
		Metadata:           map[string]string{"user_id": userID},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreateTopUpSession creates a one-time payment session for a credit top-up.
// The metadata markers are what the webhook reconciler keys off.
func (s *StripeService) CreateTopUpSession(ctx context.Context, userID string) (string, error) {
	if s.cfg.CheckoutReturnURL == "" {
		return "", fmt.Errorf("missing checkout redirect configuration")
	}
	if s.cfg.StripePriceTopUp == "" {
		return "", fmt.Errorf("%w: topup", ErrMissingPriceConfig)
	}

	user, err := s.fetchUser(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(s.cfg.StripePriceTopUp), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.cfg.CheckoutReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.CheckoutReturnURL + "?status=cancel"),
		Metadata: map[string]string{
			"user_id": userID,
			"type":    "credit_topup",
			"credits": fmt.Sprintf("%d", s.cfg.TopUpCredits),
		},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create top-up session")
		return "", fmt.Errorf("create top-up session: %w", err)
	}
	return sess.URL, nil
}

// CancelSubscription schedules cancellation at period end.
func (s *StripeService) CancelSubscription(ctx context.Context, userID string) error {
	user, err := s.fetchUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return ErrNoActiveSubscription
	}
	_, err = subscriptionpkg.Update(*user.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to schedule subscription cancellation")
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if err := s.userRepo.UpdateSubscriptionStatus(ctx, userID, "cancel_pending"); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record pending cancellation")
	}
	return nil
}

// SyncSubscription reconciles subscription state on demand by fetching the
// live subscription and applying the same mutation the webhook would.
func (s *StripeService) SyncSubscription(ctx context.Context, userID string) error {
	user, err := s.fetchUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return ErrNoActiveSubscription
	}
	sub, err := subscriptionpkg.Get(*user.StripeSubscriptionID, nil)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", *user.StripeSubscriptionID, err)
	}
	return s.applySubscription(ctx, user, sub)
}

func (s *StripeService) fetchUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

// applySubscription maps a live subscription onto the account: plan from the
// price id, balance set absolutely to the plan allotment, reset at period end.
func (s *StripeService) applySubscription(ctx context.Context, user *model.User, sub *stripe.Subscription) error {
	if len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", sub.ID)
	}
	item := sub.Items.Data[0]
	if item.Price == nil || item.Price.ID == "" {
		return fmt.Errorf("subscription %s carries no price id", sub.ID)
	}
	plan, ok := s.cfg.PlanForPrice(item.Price.ID)
	if !ok {
		return fmt.Errorf("no plan configured for price %s", item.Price.ID)
	}
	periodEnd := time.Unix(item.CurrentPeriodEnd, 0)

	status := string(sub.Status)
	if sub.CancelAtPeriodEnd {
		status = "cancel_pending"
	}

	if err := s.credits.SetPlanCredits(ctx, user.UserID, plan, s.cfg.PlanCredits, periodEnd, sub.ID, status); err != nil {
		return fmt.Errorf("set plan credits for user %s: %w", user.UserID, err)
	}
	s.logger.Info().
		Str("user_id", user.UserID).
		Str("plan", plan).
		Str("subscription_id", sub.ID).
		Str("status", status).
		Msg("Subscription reconciled")
	return nil
}

// HandleWebhook processes Stripe webhook events. Only signature failures
// return a non-200: induced retries cannot fix processing errors and risk
// double-applying credits, so those are logged and swallowed.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Stripe webhook received")

	ctx := r.Context()
	fresh, err := s.deduper.ClaimEvent(ctx, event.ID)
	if err != nil {
		// Fail open: a dedup outage must not stall subscription renewals,
		// which are absolute sets and safe to repeat.
		s.logger.Error().Err(err).Str("event_id", event.ID).Msg("Webhook dedup check failed; processing anyway")
	} else if !fresh {
		s.logger.Info().Str("event_id", event.ID).Msg("Duplicate webhook delivery skipped")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.processEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("Webhook processing failed")
	}
	w.WriteHeader(http.StatusOK)
}

func (s *StripeService) processEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("invalid subscription payload: %w", err)
		}
		user, err := s.resolveUser(ctx, customerIDOf(sub.Customer))
		if err != nil {
			return fmt.Errorf("resolve account for subscription %s: %w", sub.ID, err)
		}
		return s.applySubscription(ctx, user, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("invalid subscription payload: %w", err)
		}
		// Stored-id lookup only; no metadata fallback on the way down.
		user, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerIDOf(sub.Customer))
		if err != nil {
			return fmt.Errorf("lookup user for deleted subscription %s: %w", sub.ID, err)
		}
		if user == nil {
			return fmt.Errorf("no account for deleted subscription %s", sub.ID)
		}
		if err := s.credits.ClearSubscription(ctx, user.UserID); err != nil {
			return err
		}
		s.logger.Info().Str("user_id", user.UserID).Msg("Subscription deleted; account downgraded, credits kept")
		return nil

	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("invalid checkout.session payload: %w", err)
		}
		return s.applyTopUp(ctx, &cs)

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
		return nil
	}
}

// applyTopUp adds purchased credits for a completed one-time payment. Only
// payment-mode sessions carrying the top-up metadata marker act; subscription
// checkouts are reconciled through the subscription events instead.
func (s *StripeService) applyTopUp(ctx context.Context, cs *stripe.CheckoutSession) error {
	if cs.Mode != stripe.CheckoutSessionModePayment {
		return nil
	}
	if cs.Metadata["type"] != "credit_topup" {
		return nil
	}
	credits, err := parseCredits(cs.Metadata["credits"])
	if err != nil {
		return fmt.Errorf("top-up session %s: %w", cs.ID, err)
	}

	userID := cs.Metadata["user_id"]
	if userID == "" {
		user, err := s.resolveUser(ctx, customerIDOf(cs.Customer))
		if err != nil {
			return fmt.Errorf("resolve account for top-up session %s: %w", cs.ID, err)
		}
		userID = user.UserID
	}

	if err := s.credits.Grant(ctx, userID, credits); err != nil {
		return fmt.Errorf("grant top-up credits to user %s: %w", userID, err)
	}
	s.logger.Info().Str("user_id", userID).Int("credits", credits).Msg("Top-up credits granted")
	return nil
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func parseCredits(raw string) (int, error) {
	var credits int
	if _, err := fmt.Sscanf(raw, "%d", &credits); err != nil || credits <= 0 {
		return 0, fmt.Errorf("invalid credits metadata: %q", raw)
	}
	return credits, nil
}
