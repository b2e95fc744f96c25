package service

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"app/internal/config"
	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func stripeTestConfig() *config.Config {
	return &config.Config{
		StripeSecretKey:      "sk_test_xxx",
		StripeWebhookSecret:  "whsec_test",
		StripePriceMonthly:   "price_monthly",
		StripePriceQuarterly: "price_quarterly",
		StripePriceSixMonths: "price_six_months",
		StripePriceTopUp:     "price_topup",
		CheckoutReturnURL:    "https://app.example.com/billing",
		PlanCredits:          50,
		TopUpCredits:         50,
	}
}

func subscriptionEvent(t *testing.T, eventType, subID, customerID, priceID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":                   subID,
		"customer":             map[string]any{"id": customerID},
		"status":               "active",
		"cancel_at_period_end": false,
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": priceID}, "current_period_end": 1777000000},
			},
		},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_" + subID,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func topUpEvent(t *testing.T, mode, userID, credits string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":   "cs_test_1",
		"mode": mode,
		"metadata": map[string]string{
			"type":    "credit_topup",
			"user_id": userID,
			"credits": credits,
		},
	})
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_topup_1",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestProcessEventSubscriptionRenewalIsAbsolute(t *testing.T) {
	cfg := stripeTestConfig()
	customerID := "cus_1"
	user := &model.User{UserID: "user-1", Email: "u@example.com", StripeCustomerID: &customerID}
	users := newFakeUserRepo(user)
	credits := newFakeCreditRepo(map[string]int{"user-1": 3})
	svc := NewStripeService(cfg, users, credits, &fakeDeduper{}, zerolog.Nop())

	event := subscriptionEvent(t, "customer.subscription.created", "sub_1", "cus_1", "price_monthly")
	require.NoError(t, svc.processEvent(context.Background(), event))

	// Balance is set to the plan allotment, not added to it.
	assert.Equal(t, 50, credits.balances["user-1"])
	assert.Equal(t, []string{"monthly"}, credits.planSets)

	// A replayed renewal is harmless: the set is absolute.
	require.NoError(t, svc.processEvent(context.Background(), event))
	assert.Equal(t, 50, credits.balances["user-1"])
}

func TestProcessEventSubscriptionUnknownPrice(t *testing.T) {
	cfg := stripeTestConfig()
	customerID := "cus_1"
	user := &model.User{UserID: "user-1", StripeCustomerID: &customerID}
	credits := newFakeCreditRepo(map[string]int{"user-1": 3})
	svc := NewStripeService(cfg, newFakeUserRepo(user), credits, &fakeDeduper{}, zerolog.Nop())

	event := subscriptionEvent(t, "customer.subscription.updated", "sub_1", "cus_1", "price_unknown")
	err := svc.processEvent(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan configured")
	assert.Equal(t, 3, credits.balances["user-1"])
}

func TestProcessEventSubscriptionDeletedKeepsCredits(t *testing.T) {
	cfg := stripeTestConfig()
	customerID := "cus_1"
	user := &model.User{UserID: "user-1", StripeCustomerID: &customerID}
	credits := newFakeCreditRepo(map[string]int{"user-1": 17})
	svc := NewStripeService(cfg, newFakeUserRepo(user), credits, &fakeDeduper{}, zerolog.Nop())

	event := subscriptionEvent(t, "customer.subscription.deleted", "sub_1", "cus_1", "price_monthly")
	require.NoError(t, svc.processEvent(context.Background(), event))

	assert.Equal(t, []string{"user-1"}, credits.cleared)
	// ClearSubscription downgrades the plan but the fake keeps the balance,
	// matching the real repository contract.
	assert.Equal(t, 17, credits.balances["user-1"])
}

func TestProcessEventTopUpGrantsCredits(t *testing.T) {
	cfg := stripeTestConfig()
	user := &model.User{UserID: "user-1"}
	credits := newFakeCreditRepo(map[string]int{"user-1": 5})
	svc := NewStripeService(cfg, newFakeUserRepo(user), credits, &fakeDeduper{}, zerolog.Nop())

	require.NoError(t, svc.processEvent(context.Background(), topUpEvent(t, "payment", "user-1", "50")))
	assert.Equal(t, 55, credits.balances["user-1"])
}

func TestProcessEventIgnoresSubscriptionCheckouts(t *testing.T) {
	cfg := stripeTestConfig()
	user := &model.User{UserID: "user-1"}
	credits := newFakeCreditRepo(map[string]int{"user-1": 5})
	svc := NewStripeService(cfg, newFakeUserRepo(user), credits, &fakeDeduper{}, zerolog.Nop())

	// Subscription-mode checkout completions are reconciled through the
	// subscription events, never via checkout metadata.
	require.NoError(t, svc.processEvent(context.Background(), topUpEvent(t, "subscription", "user-1", "50")))
	assert.Equal(t, 5, credits.balances["user-1"])
}

func TestProcessEventTopUpRejectsBadCredits(t *testing.T) {
	cfg := stripeTestConfig()
	user := &model.User{UserID: "user-1"}
	credits := newFakeCreditRepo(map[string]int{"user-1": 5})
	svc := NewStripeService(cfg, newFakeUserRepo(user), credits, &fakeDeduper{}, zerolog.Nop())

	err := svc.processEvent(context.Background(), topUpEvent(t, "payment", "user-1", "-10"))
	require.Error(t, err)
	assert.Equal(t, 5, credits.balances["user-1"])
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	cfg := stripeTestConfig()
	svc := NewStripeService(cfg, newFakeUserRepo(), newFakeCreditRepo(nil), &fakeDeduper{}, zerolog.Nop())

	req := httptest.NewRequest("POST", "/stripeWebhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	rec := httptest.NewRecorder()

	svc.HandleWebhook(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestCreateCheckoutSessionValidation(t *testing.T) {
	cfg := stripeTestConfig()
	cfg.StripePriceQuarterly = ""
	user := &model.User{UserID: "user-1"}
	svc := NewStripeService(cfg, newFakeUserRepo(user), newFakeCreditRepo(nil), &fakeDeduper{}, zerolog.Nop())

	_, err := svc.CreateCheckoutSession(context.Background(), "user-1", "lifetime")
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.CreateCheckoutSession(context.Background(), "user-1", model.PlanQuarterly)
	assert.ErrorIs(t, err, ErrMissingPriceConfig)
}

func TestCancelSubscriptionWithoutOne(t *testing.T) {
	cfg := stripeTestConfig()
	user := &model.User{UserID: "user-1"}
	svc := NewStripeService(cfg, newFakeUserRepo(user), newFakeCreditRepo(nil), &fakeDeduper{}, zerolog.Nop())

	err := svc.CancelSubscription(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}
