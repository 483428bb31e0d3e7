package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/database/testutil"
	"github.com/opsboard/opsboard/internal/models"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
)

type taskFixture struct {
	db            *gorm.DB
	tasks         *TaskService
	notifications *NotificationService

	manager *models.User
	agent   *models.User
	client  *models.Client
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	notifications, err := NewNotificationService(db)
	require.NoError(t, err)
	tasks, err := NewTaskService(db, notifications)
	require.NoError(t, err)

	manager := createUser(t, db, "manager", models.RoleAccountManager)
	agent := createUser(t, db, "agent", models.RoleAgent)
	client := createClient(t, db, "Acme", manager.ID)

	return &taskFixture{
		db:            db,
		tasks:         tasks,
		notifications: notifications,
		manager:       manager,
		agent:         agent,
		client:        client,
	}
}

func (f *taskFixture) adminScope(t *testing.T) Scope {
	t.Helper()
	admin := createUser(t, f.db, "root", models.RoleAdmin)
	return Scope{UserID: admin.ID, Role: models.RoleAdmin}
}

func TestTaskHistoryNormalizesRows(t *testing.T) {
	f := newTaskFixture(t)

	task := createTask(t, f.db, "Invoice entry", f.client.ID, &f.agent.ID)
	require.NoError(t, f.db.Model(task).Updates(map[string]any{
		"status":                  models.TaskStatusQCApproved,
		"performance_rating":      4.5,
		"ideal_duration_minutes":  30,
		"actual_duration_minutes": 25,
	}).Error)

	rows, err := f.tasks.History(context.Background(), HistoryInput{
		Scope:   Scope{UserID: f.agent.ID, Role: models.RoleAgent},
		AgentID: f.agent.ID,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, task.ID, row.ID)
	require.Equal(t, "Invoice entry", row.Name)
	require.Equal(t, "Acme", row.ClientName)
	require.Equal(t, string(models.TaskStatusQCApproved), row.Status)
	require.NotNil(t, row.PerformanceRating)
	require.InDelta(t, 4.5, *row.PerformanceRating, 0.0001)
	require.NotNil(t, row.IdealDurationMinutes)
	require.Equal(t, 30, *row.IdealDurationMinutes)
}

func TestTaskHistoryScoping(t *testing.T) {
	f := newTaskFixture(t)
	createTask(t, f.db, "Own work", f.client.ID, &f.agent.ID)

	t.Run("agent cannot read another agent", func(t *testing.T) {
		other := createUser(t, f.db, "other-agent", models.RoleAgent)
		_, err := f.tasks.History(context.Background(), HistoryInput{
			Scope:   Scope{UserID: other.ID, Role: models.RoleAgent},
			AgentID: f.agent.ID,
		})
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("qc cannot read another agent", func(t *testing.T) {
		qc := createUser(t, f.db, "reviewer", models.RoleQC)
		_, err := f.tasks.History(context.Background(), HistoryInput{
			Scope:   Scope{UserID: qc.ID, Role: models.RoleQC},
			AgentID: f.agent.ID,
		})
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("manager sees only managed clients", func(t *testing.T) {
		otherManager := createUser(t, f.db, "manager-two", models.RoleAccountManager)
		otherClient := createClient(t, f.db, "Globex", otherManager.ID)
		createTask(t, f.db, "Foreign work", otherClient.ID, &f.agent.ID)

		rows, err := f.tasks.History(context.Background(), HistoryInput{
			Scope:   Scope{UserID: f.manager.ID, Role: models.RoleAccountManager},
			AgentID: f.agent.ID,
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Own work", rows[0].Name)
	})

	t.Run("missing agent id is rejected", func(t *testing.T) {
		_, err := f.tasks.History(context.Background(), HistoryInput{
			Scope: f.adminScope(t),
		})
		require.Error(t, err)
	})
}

func TestTaskHistoryFilters(t *testing.T) {
	f := newTaskFixture(t)
	scope := Scope{UserID: f.agent.ID, Role: models.RoleAgent}

	pending := createTask(t, f.db, "Alpha entry", f.client.ID, &f.agent.ID)
	done := createTask(t, f.db, "Beta entry", f.client.ID, &f.agent.ID)
	require.NoError(t, f.db.Model(done).Update("status", models.TaskStatusCompleted).Error)

	t.Run("status filter drops unknown values", func(t *testing.T) {
		rows, err := f.tasks.History(context.Background(), HistoryInput{
			Scope:    scope,
			AgentID:  f.agent.ID,
			Statuses: []string{"completed", "made-up"},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, done.ID, rows[0].ID)
	})

	t.Run("name search", func(t *testing.T) {
		rows, err := f.tasks.History(context.Background(), HistoryInput{
			Scope:   scope,
			AgentID: f.agent.ID,
			Q:       "alpha",
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, pending.ID, rows[0].ID)
	})

	t.Run("updated date field", func(t *testing.T) {
		rows, err := f.tasks.History(context.Background(), HistoryInput{
			Scope:     scope,
			AgentID:   f.agent.ID,
			DateField: "updated",
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})
}

func TestTaskCreate(t *testing.T) {
	f := newTaskFixture(t)
	scope := Scope{UserID: f.manager.ID, Role: models.RoleAccountManager}

	task, err := f.tasks.Create(context.Background(), scope, CreateTaskInput{
		Name:                 "Monthly reconciliation",
		ClientID:             f.client.ID,
		AssignedToID:         f.agent.ID,
		FrequencyDays:        30,
		IdealDurationMinutes: ptr(45),
	})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, task.Status)
	require.Equal(t, 30, task.FrequencyDays)
	require.NotNil(t, task.AssignedToID)

	t.Run("manager cannot create under foreign client", func(t *testing.T) {
		otherManager := createUser(t, f.db, "manager-two", models.RoleAccountManager)
		otherClient := createClient(t, f.db, "Globex", otherManager.ID)

		_, err := f.tasks.Create(context.Background(), scope, CreateTaskInput{
			Name:     "Sneaky",
			ClientID: otherClient.ID,
		})
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("name is required", func(t *testing.T) {
		_, err := f.tasks.Create(context.Background(), scope, CreateTaskInput{ClientID: f.client.ID})
		require.Error(t, err)
	})
}

func TestTaskUpdateStatus(t *testing.T) {
	f := newTaskFixture(t)
	qc := createUser(t, f.db, "reviewer", models.RoleQC)
	qcScope := Scope{UserID: qc.ID, Role: models.RoleQC}

	t.Run("unknown status is rejected", func(t *testing.T) {
		task := createTask(t, f.db, "Entry", f.client.ID, &f.agent.ID)
		_, err := f.tasks.UpdateStatus(context.Background(), UpdateTaskStatusInput{
			Scope:  qcScope,
			TaskID: task.ID,
			Status: models.TaskStatus("sideways"),
		})
		require.Error(t, err)
	})

	t.Run("completion stamps last completed at", func(t *testing.T) {
		task := createTask(t, f.db, "Recurring", f.client.ID, &f.agent.ID)
		updated, err := f.tasks.UpdateStatus(context.Background(), UpdateTaskStatusInput{
			Scope:  qcScope,
			TaskID: task.ID,
			Status: models.TaskStatusCompleted,
		})
		require.NoError(t, err)
		require.NotNil(t, updated.LastCompletedAt)
	})

	t.Run("low rating approval emits performance notification", func(t *testing.T) {
		task := createTask(t, f.db, "Reviewed", f.client.ID, &f.agent.ID)
		_, err := f.tasks.UpdateStatus(context.Background(), UpdateTaskStatusInput{
			Scope:             qcScope,
			TaskID:            task.ID,
			Status:            models.TaskStatusQCApproved,
			PerformanceRating: ptr(2.0),
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, f.db.Model(&models.Notification{}).
			Where("task_id = ? AND type = ?", task.ID, models.NotificationTypePerformance).
			Count(&count).Error)
		require.EqualValues(t, 1, count)
	})

	t.Run("duration overrun emits performance notification", func(t *testing.T) {
		task := createTask(t, f.db, "Timed", f.client.ID, &f.agent.ID)
		require.NoError(t, f.db.Model(task).Update("ideal_duration_minutes", 30).Error)

		_, err := f.tasks.UpdateStatus(context.Background(), UpdateTaskStatusInput{
			Scope:                 qcScope,
			TaskID:                task.ID,
			Status:                models.TaskStatusQCApproved,
			PerformanceRating:     ptr(4.0),
			ActualDurationMinutes: ptr(90),
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, f.db.Model(&models.Notification{}).
			Where("task_id = ? AND type = ?", task.ID, models.NotificationTypePerformance).
			Count(&count).Error)
		require.EqualValues(t, 1, count)
	})

	t.Run("good approval stays quiet", func(t *testing.T) {
		task := createTask(t, f.db, "Clean", f.client.ID, &f.agent.ID)
		_, err := f.tasks.UpdateStatus(context.Background(), UpdateTaskStatusInput{
			Scope:             qcScope,
			TaskID:            task.ID,
			Status:            models.TaskStatusQCApproved,
			PerformanceRating: ptr(4.8),
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, f.db.Model(&models.Notification{}).
			Where("task_id = ?", task.ID).
			Count(&count).Error)
		require.Zero(t, count)
	})

	t.Run("agent cannot touch a foreign task", func(t *testing.T) {
		other := createUser(t, f.db, "other-agent", models.RoleAgent)
		task := createTask(t, f.db, "Guarded", f.client.ID, &f.agent.ID)

		_, err := f.tasks.UpdateStatus(context.Background(), UpdateTaskStatusInput{
			Scope:  Scope{UserID: other.ID, Role: models.RoleAgent},
			TaskID: task.ID,
			Status: models.TaskStatusInProgress,
		})
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestTaskFrequencySweep(t *testing.T) {
	f := newTaskFixture(t)

	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	f.tasks.timeNow = func() time.Time { return now }
	f.notifications.timeNow = func() time.Time { return now }

	overdue := createTask(t, f.db, "Weekly digest", f.client.ID, &f.agent.ID)
	require.NoError(t, f.db.Model(overdue).Updates(map[string]any{
		"frequency_days":    7,
		"last_completed_at": now.AddDate(0, 0, -10),
	}).Error)

	fresh := createTask(t, f.db, "Daily sync", f.client.ID, &f.agent.ID)
	require.NoError(t, f.db.Model(fresh).Updates(map[string]any{
		"frequency_days":    1,
		"last_completed_at": now.Add(-time.Hour),
	}).Error)

	oneOff := createTask(t, f.db, "Setup", f.client.ID, &f.agent.ID)
	_ = oneOff

	created, err := f.tasks.FrequencySweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, created)

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("task_id = ? AND type = ?", overdue.ID, models.NotificationTypeFrequencyMissed).
		Count(&count).Error)
	require.EqualValues(t, 1, count)

	t.Run("unread alert suppresses repeats", func(t *testing.T) {
		created, err := f.tasks.FrequencySweep(context.Background())
		require.NoError(t, err)
		require.Zero(t, created)
	})

	t.Run("reading the alert rearms the sweep", func(t *testing.T) {
		require.NoError(t, f.db.Model(&models.Notification{}).
			Where("task_id = ?", overdue.ID).
			Update("is_read", true).Error)

		created, err := f.tasks.FrequencySweep(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, created)
	})
}
