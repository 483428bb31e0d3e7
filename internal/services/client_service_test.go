package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opsboard/opsboard/internal/database/testutil"
	"github.com/opsboard/opsboard/internal/models"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
)

func TestClientService(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := NewClientService(db)
	require.NoError(t, err)

	manager := createUser(t, db, "manager", models.RoleAccountManager)
	otherManager := createUser(t, db, "manager-two", models.RoleAccountManager)
	agent := createUser(t, db, "agent", models.RoleAgent)

	created, err := service.Create(context.Background(), CreateClientInput{
		Name:      "Acme",
		ManagerID: manager.ID,
	})
	require.NoError(t, err)
	require.Equal(t, manager.ID, created.ManagerID)

	_, err = service.Create(context.Background(), CreateClientInput{
		Name:      "Globex",
		ManagerID: otherManager.ID,
	})
	require.NoError(t, err)

	t.Run("agent cannot be a manager", func(t *testing.T) {
		_, err := service.Create(context.Background(), CreateClientInput{
			Name:      "Initech",
			ManagerID: agent.ID,
		})
		require.Error(t, err)
	})

	t.Run("manager lists only managed clients", func(t *testing.T) {
		clients, err := service.List(context.Background(), Scope{UserID: manager.ID, Role: models.RoleAccountManager})
		require.NoError(t, err)
		require.Len(t, clients, 1)
		require.Equal(t, "Acme", clients[0].Name)
	})

	t.Run("admin lists everything", func(t *testing.T) {
		clients, err := service.List(context.Background(), Scope{UserID: "any", Role: models.RoleAdmin})
		require.NoError(t, err)
		require.Len(t, clients, 2)
	})

	t.Run("foreign client reads as not found", func(t *testing.T) {
		_, err := service.Get(context.Background(), Scope{UserID: otherManager.ID, Role: models.RoleAccountManager}, created.ID)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("reassign moves the client", func(t *testing.T) {
		moved, err := service.Reassign(context.Background(), created.ID, otherManager.ID)
		require.NoError(t, err)
		require.Equal(t, otherManager.ID, moved.ManagerID)
	})
}
