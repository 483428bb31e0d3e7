package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
)

func createUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@opsboard.test",
		Password: "hashed-secret",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createClient(t *testing.T, db *gorm.DB, name, managerID string) *models.Client {
	t.Helper()
	client := &models.Client{Name: name, ManagerID: managerID}
	require.NoError(t, db.Create(client).Error)
	return client
}

func createTask(t *testing.T, db *gorm.DB, name, clientID string, assignedTo *string) *models.Task {
	t.Helper()
	task := &models.Task{
		Name:         name,
		ClientID:     clientID,
		AssignedToID: assignedTo,
		Status:       models.TaskStatusPending,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func createNotification(t *testing.T, db *gorm.DB, taskID, message string, createdAt time.Time) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		TaskID:  taskID,
		Type:    models.NotificationTypeGeneral,
		Message: message,
	}
	notification.CreatedAt = createdAt
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func ptr[T any](v T) *T {
	return &v
}
