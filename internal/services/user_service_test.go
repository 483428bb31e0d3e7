package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsboard/opsboard/internal/database/testutil"
	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/pkg/crypto"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := NewUserService(db)
	require.NoError(t, err)
	return service
}

func TestUserCreate(t *testing.T) {
	service := newUserService(t)

	user, err := service.Create(context.Background(), CreateUserInput{
		Username: "Dana",
		Email:    "Dana@Example.com",
		Password: "hunter2hunter2",
		Role:     "agent",
	})
	require.NoError(t, err)
	require.Equal(t, "dana", user.Username)
	require.Equal(t, "dana@example.com", user.Email)
	require.True(t, user.IsActive)
	require.True(t, crypto.VerifyPassword(user.Password, "hunter2hunter2"))

	t.Run("duplicate username is a bad request", func(t *testing.T) {
		_, err := service.Create(context.Background(), CreateUserInput{
			Username: "dana",
			Email:    "other@example.com",
			Password: "hunter2hunter2",
			Role:     "agent",
		})
		require.Error(t, err)
		require.Equal(t, 400, apperrors.FromError(err).StatusCode)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := service.Create(context.Background(), CreateUserInput{
			Username: "eve",
			Email:    "eve@example.com",
			Password: "hunter2hunter2",
			Role:     "superuser",
		})
		require.Error(t, err)
	})
}

func TestUserUpdate(t *testing.T) {
	service := newUserService(t)

	user, err := service.Create(context.Background(), CreateUserInput{
		Username: "frank",
		Email:    "frank@example.com",
		Password: "hunter2hunter2",
		Role:     "agent",
	})
	require.NoError(t, err)

	updated, err := service.Update(context.Background(), user.ID, UpdateUserInput{
		DisplayName: ptr("Frank Ops"),
		Role:        ptr("qc"),
	})
	require.NoError(t, err)

	stored, err := service.Get(context.Background(), updated.ID)
	require.NoError(t, err)
	require.Equal(t, "Frank Ops", stored.DisplayName)
	require.Equal(t, models.RoleQC, stored.Role)

	t.Run("missing user reports not found", func(t *testing.T) {
		_, err := service.Update(context.Background(), "00000000-0000-0000-0000-000000000000", UpdateUserInput{})
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUserDeactivate(t *testing.T) {
	service := newUserService(t)

	user, err := service.Create(context.Background(), CreateUserInput{
		Username: "gone",
		Email:    "gone@example.com",
		Password: "hunter2hunter2",
		Role:     "agent",
	})
	require.NoError(t, err)

	require.NoError(t, service.Deactivate(context.Background(), user.ID))

	stored, err := service.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	agents, err := service.ListAgents(context.Background())
	require.NoError(t, err)
	require.Empty(t, agents)
}
