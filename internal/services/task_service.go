package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
)

// Ratings below this threshold trigger a performance notification at QC approval.
const performanceRatingThreshold = 3.0

// TaskHistoryRow is the normalized shape returned by the agent history endpoint.
type TaskHistoryRow struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	ClientName            string     `json:"clientName"`
	Status                string     `json:"status"`
	Date                  time.Time  `json:"date"`
	PerformanceRating     *float64   `json:"performanceRating"`
	IdealDurationMinutes  *int       `json:"idealDurationMinutes"`
	ActualDurationMinutes *int       `json:"actualDurationMinutes"`
}

// HistoryInput filters an agent's task history.
type HistoryInput struct {
	Scope   Scope
	AgentID string
	Limit   int
	// DateField selects which timestamp orders and labels the rows:
	// "created" (default) or "updated".
	DateField string
	Statuses  []string // unknown statuses are silently dropped
	Q         string   // case-insensitive substring on task name
}

// CreateTaskInput describes a new unit of client work.
type CreateTaskInput struct {
	Name                 string
	ClientID             string
	AssignedToID         string
	FrequencyDays        int
	IdealDurationMinutes *int
	DueAt                *time.Time
}

// UpdateTaskStatusInput drives the task workflow.
type UpdateTaskStatusInput struct {
	Scope  Scope
	TaskID string
	Status models.TaskStatus
	// QC review metrics; only honoured on transitions into qc_approved/qc_rejected.
	PerformanceRating     *float64
	ActualDurationMinutes *int
}

// TaskService owns the task workflow and its notification side effects.
type TaskService struct {
	db            *gorm.DB
	notifications *NotificationService
	timeNow       func() time.Time
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB, notifications *NotificationService) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("task service: notification service is required")
	}
	return &TaskService{db: db, notifications: notifications, timeNow: time.Now}, nil
}

// History returns the agent's past tasks, normalized for the dashboard table.
// Agents and QC reviewers can only read their own history; managers are
// limited to tasks under their clients.
func (s *TaskService) History(ctx context.Context, input HistoryInput) ([]TaskHistoryRow, error) {
	ctx = ensureContext(ctx)

	agentID := strings.TrimSpace(input.AgentID)
	if agentID == "" {
		return nil, apperrors.NewBadRequest("agent id is required")
	}

	switch input.Scope.Role {
	case models.RoleAdmin, models.RoleAccountManager:
	default:
		if input.Scope.UserID != agentID {
			return nil, apperrors.ErrNotFound
		}
	}

	dateColumn := "tasks.created_at"
	if strings.EqualFold(strings.TrimSpace(input.DateField), "updated") {
		dateColumn = "tasks.updated_at"
	}

	query := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Joins("JOIN clients ON clients.id = tasks.client_id").
		Where("tasks.assigned_to_id = ?", agentID)

	if input.Scope.Role == models.RoleAccountManager {
		query = query.Where("clients.manager_id = ?", input.Scope.UserID)
	}

	if statuses := validStatuses(input.Statuses); len(statuses) > 0 {
		query = query.Where("tasks.status IN ?", statuses)
	}

	if q := strings.TrimSpace(input.Q); q != "" {
		query = query.Where("LOWER(tasks.name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	var tasks []models.Task
	if err := query.
		Preload("Client").
		Order(dateColumn + " DESC").
		Limit(clampTake(input.Limit)).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task service: history: %w", err)
	}

	useUpdated := dateColumn == "tasks.updated_at"
	rows := make([]TaskHistoryRow, 0, len(tasks))
	for _, task := range tasks {
		row := TaskHistoryRow{
			ID:                    task.ID,
			Name:                  task.Name,
			Status:                string(task.Status),
			Date:                  task.CreatedAt,
			PerformanceRating:     task.PerformanceRating,
			IdealDurationMinutes:  task.IdealDurationMinutes,
			ActualDurationMinutes: task.ActualDurationMinutes,
		}
		if useUpdated {
			row.Date = task.UpdatedAt
		}
		if task.Client != nil {
			row.ClientName = task.Client.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Create registers a new task under a client in the caller scope.
func (s *TaskService) Create(ctx context.Context, scope Scope, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("task name is required")
	}
	clientID := strings.TrimSpace(input.ClientID)
	if clientID == "" {
		return nil, apperrors.NewBadRequest("client id is required")
	}

	var client models.Client
	clientQuery := s.db.WithContext(ctx).Where("id = ?", clientID)
	if scope.Role == models.RoleAccountManager {
		clientQuery = clientQuery.Where("manager_id = ?", scope.UserID)
	}
	if err := clientQuery.First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load client: %w", err)
	}

	task := models.Task{
		Name:                 name,
		ClientID:             client.ID,
		Status:               models.TaskStatusPending,
		FrequencyDays:        input.FrequencyDays,
		IdealDurationMinutes: input.IdealDurationMinutes,
		DueAt:                input.DueAt,
	}
	if assignee := strings.TrimSpace(input.AssignedToID); assignee != "" {
		task.AssignedToID = &assignee
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("task service: create: %w", err)
	}
	return &task, nil
}

// Get loads one task visible to the caller scope.
func (s *TaskService) Get(ctx context.Context, scope Scope, taskID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var task models.Task
	if err := s.scopedTasks(ctx, scope).
		Preload("Client").
		Where("tasks.id = ?", strings.TrimSpace(taskID)).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: get: %w", err)
	}
	return &task, nil
}

// UpdateStatus transitions a task through the workflow and emits the
// notification side effects the dashboards rely on.
func (s *TaskService) UpdateStatus(ctx context.Context, input UpdateTaskStatusInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	if !models.ValidTaskStatus(string(input.Status)) {
		return nil, apperrors.NewBadRequest("unknown task status")
	}

	var task models.Task
	if err := s.scopedTasks(ctx, input.Scope).
		Where("tasks.id = ?", strings.TrimSpace(input.TaskID)).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}

	now := s.timeNow().UTC()
	updates := map[string]any{"status": input.Status}

	switch input.Status {
	case models.TaskStatusQCApproved, models.TaskStatusQCRejected:
		if input.PerformanceRating != nil {
			updates["performance_rating"] = *input.PerformanceRating
		}
		if input.ActualDurationMinutes != nil {
			updates["actual_duration_minutes"] = *input.ActualDurationMinutes
		}
	case models.TaskStatusCompleted:
		updates["last_completed_at"] = now
	}

	if err := s.db.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("task service: update status: %w", err)
	}

	if input.Status == models.TaskStatusQCApproved {
		s.notifyPerformance(ctx, &task, input)
	}

	if err := s.db.WithContext(ctx).Preload("Client").First(&task, "id = ?", task.ID).Error; err != nil {
		return nil, fmt.Errorf("task service: reload task: %w", err)
	}
	return &task, nil
}

// notifyPerformance emits a performance notification when QC approval carries
// a sub-par rating or an overrun against the ideal duration. Notification
// failures do not fail the transition.
func (s *TaskService) notifyPerformance(ctx context.Context, task *models.Task, input UpdateTaskStatusInput) {
	rating := input.PerformanceRating
	actual := input.ActualDurationMinutes

	var message string
	switch {
	case rating != nil && *rating < performanceRatingThreshold:
		message = fmt.Sprintf("Task %q was approved with a performance rating of %.1f", task.Name, *rating)
	case actual != nil && task.IdealDurationMinutes != nil && *actual > *task.IdealDurationMinutes:
		message = fmt.Sprintf("Task %q took %d minutes against an ideal of %d", task.Name, *actual, *task.IdealDurationMinutes)
	default:
		return
	}

	_, _ = s.notifications.Create(ctx, CreateNotificationInput{
		TaskID:  task.ID,
		Type:    models.NotificationTypePerformance,
		Message: message,
	})
}

// FrequencySweep creates frequency_missed notifications for recurring tasks
// whose cadence elapsed since the last completion. A task with an unread
// frequency_missed notification is skipped so each missed window alerts once.
func (s *TaskService) FrequencySweep(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	now := s.timeNow().UTC()

	var tasks []models.Task
	if err := s.db.WithContext(ctx).
		Where("frequency_days > 0").
		Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("task service: frequency sweep: %w", err)
	}

	created := 0
	for _, task := range tasks {
		reference := task.CreatedAt
		if task.LastCompletedAt != nil {
			reference = *task.LastCompletedAt
		}
		deadline := reference.AddDate(0, 0, task.FrequencyDays)
		if now.Before(deadline) {
			continue
		}

		var pending int64
		if err := s.db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("task_id = ? AND type = ? AND is_read = ?", task.ID, models.NotificationTypeFrequencyMissed, false).
			Count(&pending).Error; err != nil {
			return created, fmt.Errorf("task service: sweep dedup check: %w", err)
		}
		if pending > 0 {
			continue
		}

		message := fmt.Sprintf("Task %q missed its %d-day completion cadence", task.Name, task.FrequencyDays)
		if _, err := s.notifications.Create(ctx, CreateNotificationInput{
			TaskID:  task.ID,
			Type:    models.NotificationTypeFrequencyMissed,
			Message: message,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *TaskService) scopedTasks(ctx context.Context, scope Scope) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Joins("JOIN clients ON clients.id = tasks.client_id")

	switch scope.Role {
	case models.RoleAdmin:
		return query
	case models.RoleAccountManager:
		return query.Where("clients.manager_id = ?", scope.UserID)
	case models.RoleQC:
		return query
	default:
		return query.Where("tasks.assigned_to_id = ?", scope.UserID)
	}
}

func validStatuses(values []string) []string {
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || !models.ValidTaskStatus(value) {
			continue
		}
		out = append(out, value)
	}
	return out
}
