package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
)

// fakeCreditRepo is an in-memory ledger with the same atomicity contract as
// the real one: Reserve fails outright when the balance does not cover it.
type fakeCreditRepo struct {
	balances    map[string]int
	adjustments []model.CreditAdjustment
	planSets    []string
	cleared     []string
	reserveErr  error
}

func newFakeCreditRepo(balances map[string]int) *fakeCreditRepo {
	if balances == nil {
		balances = map[string]int{}
	}
	return &fakeCreditRepo{balances: balances}
}

func (f *fakeCreditRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	b, ok := f.balances[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return b, nil
}

func (f *fakeCreditRepo) Reserve(ctx context.Context, userID string, amount int) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}
	b, ok := f.balances[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if b < amount {
		return repository.ErrInsufficientCredits
	}
	f.balances[userID] = b - amount
	return nil
}

func (f *fakeCreditRepo) Refund(ctx context.Context, userID string, amount int) error {
	f.balances[userID] += amount
	return nil
}

func (f *fakeCreditRepo) Grant(ctx context.Context, userID string, amount int) error {
	if _, ok := f.balances[userID]; !ok {
		return repository.ErrUserNotFound
	}
	f.balances[userID] += amount
	return nil
}

func (f *fakeCreditRepo) GrantWithReason(ctx context.Context, adj *model.CreditAdjustment) error {
	if err := f.Grant(ctx, adj.UserID, adj.Amount); err != nil {
		return err
	}
	f.adjustments = append(f.adjustments, *adj)
	return nil
}

func (f *fakeCreditRepo) SetPlanCredits(ctx context.Context, userID, plan string, credits int, resetAt time.Time, subscriptionID, status string) error {
	if _, ok := f.balances[userID]; !ok {
		return repository.ErrUserNotFound
	}
	f.balances[userID] = credits
	f.planSets = append(f.planSets, plan)
	return nil
}

func (f *fakeCreditRepo) ClearSubscription(ctx context.Context, userID string) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakeMockupRepo struct {
	artworks  map[string]*model.Artwork
	mockups   map[string]*model.Mockup
	createErr error
}

func newFakeMockupRepo() *fakeMockupRepo {
	return &fakeMockupRepo{
		artworks: map[string]*model.Artwork{},
		mockups:  map[string]*model.Mockup{},
	}
}

func (f *fakeMockupRepo) CreateArtwork(ctx context.Context, a *model.Artwork) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *a
	f.artworks[a.ID] = &cp
	return nil
}

func (f *fakeMockupRepo) GetArtworkByID(ctx context.Context, id string) (*model.Artwork, error) {
	a, ok := f.artworks[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeMockupRepo) CreateMockup(ctx context.Context, m *model.Mockup) error {
	cp := *m
	f.mockups[m.ID] = &cp
	return nil
}

func (f *fakeMockupRepo) GetMockupByID(ctx context.Context, id string) (*model.Mockup, error) {
	m, ok := f.mockups[id]
	if !ok {
		return nil, repository.ErrMockupNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMockupRepo) UpdateMockupURL(ctx context.Context, id, url string) error {
	m, ok := f.mockups[id]
	if !ok {
		return repository.ErrMockupNotFound
	}
	m.URL = url
	return nil
}

func (f *fakeMockupRepo) ListMockupsByUser(ctx context.Context, userID string, limit, offset int) ([]model.Mockup, error) {
	var out []model.Mockup
	for _, m := range f.mockups {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	sessions map[string]*model.GuestSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.GuestSession{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, artworkURL string) (*model.GuestSession, error) {
	s := &model.GuestSession{
		ID:         uuid.NewString(),
		ArtworkURL: artworkURL,
		Status:     model.SessionStatusGenerated,
		CreatedAt:  time.Now(),
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id string) (*model.GuestSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) RecordResults(ctx context.Context, id string, results []model.MockupResult, genErrors []model.MockupError) error {
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.Results = results
	s.Errors = genErrors
	return nil
}

func (f *fakeSessionRepo) SetEmailPending(ctx context.Context, id, email string) error {
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if s.Status == model.SessionStatusEmailSent {
		return repository.ErrEmailAlreadySent
	}
	if s.Email != nil && *s.Email != email {
		return repository.ErrEmailMismatch
	}
	s.Email = &email
	s.Status = model.SessionStatusPendingEmail
	return nil
}

func (f *fakeSessionRepo) MarkEmailSent(ctx context.Context, id string) error {
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	s.Status = model.SessionStatusEmailSent
	return nil
}

func (f *fakeSessionRepo) Claim(ctx context.Context, id, userID, email string) (*model.GuestSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	if s.ClaimedBy != nil {
		return nil, repository.ErrSessionClaimed
	}
	if s.Email != nil && *s.Email != email {
		return nil, repository.ErrEmailMismatch
	}
	now := time.Now()
	s.ClaimedBy = &userID
	s.ClaimedAt = &now
	cp := *s
	return &cp, nil
}

type fakeRateLimiter struct {
	counts map[string]int
	limits map[string]int
}

func newFakeRateLimiter() *fakeRateLimiter {
	return &fakeRateLimiter{counts: map[string]int{}, limits: map[string]int{}}
}

func (f *fakeRateLimiter) CheckAndIncrement(ctx context.Context, action, fingerprint string, limit int, window time.Duration) (int, error) {
	key := action + "|" + fingerprint
	if limit > 0 && f.counts[key] >= limit {
		return f.counts[key], repository.ErrRateLimited
	}
	f.counts[key]++
	return f.counts[key], nil
}

// fakeGenerator succeeds for every category except those listed in failing.
type fakeGenerator struct {
	failing map[string]bool
	calls   int
}

func (f *fakeGenerator) RenderMockup(ctx context.Context, artworkURL, category string) (string, error) {
	f.calls++
	if f.failing[category] {
		return "", errors.New("render backend unavailable")
	}
	return "https://cdn.example.com/mockups/" + category + ".png", nil
}

type fakePublisher struct {
	published [][]byte
	topics    []string
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, payload)
	return uuid.NewString(), nil
}

type fakeUserRepo struct {
	byID         map[string]*model.User
	byCustomerID map[string]*model.User
	statuses     map[string]string
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{
		byID:         map[string]*model.User{},
		byCustomerID: map[string]*model.User{},
		statuses:     map[string]string{},
	}
	for _, u := range users {
		f.byID[u.UserID] = u
		if u.StripeCustomerID != nil {
			f.byCustomerID[*u.StripeCustomerID] = u
		}
	}
	return f
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, u *model.User) error {
	f.byID[u.UserID] = u
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return f.byID[id], nil
}

func (f *fakeUserRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return f.byCustomerID[customerID], nil
}

func (f *fakeUserRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	u, ok := f.byID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.StripeCustomerID = &customerID
	f.byCustomerID[customerID] = u
	return nil
}

func (f *fakeUserRepo) UpdateSubscriptionStatus(ctx context.Context, userID, status string) error {
	f.statuses[userID] = status
	return nil
}

type fakeDeduper struct {
	seen map[string]bool
	err  error
}

func (f *fakeDeduper) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}
