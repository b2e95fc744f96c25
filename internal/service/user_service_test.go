package service

import (
	"context"
	"testing"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreateGrantsSignupBonusOnce(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewUserService(users, 5, zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, &model.User{UserID: "user-1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 5, created.Credits)

	// Spend some credits, then repeat the signup call.
	created.Credits = 2
	again, err := svc.Create(ctx, &model.User{UserID: "user-1", Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Credits)
}

func TestUserGetUnknown(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), 5, zerolog.Nop())

	_, err := svc.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
