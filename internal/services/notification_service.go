package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
	"github.com/opsboard/opsboard/pkg/metrics"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	TaskID     string         `json:"task_id"`
	TaskName   string         `json:"task_name,omitempty"`
	ClientName string         `json:"client_name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IsRead     bool           `json:"is_read"`
	CreatedAt  time.Time      `json:"created_at"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	TaskID   string
	Type     models.NotificationType
	Message  string
	Metadata map[string]any
}

// ListNotificationsInput carries the caller's filter parameters. String
// fields arrive exactly as supplied on the URL; the service interprets them.
type ListNotificationsInput struct {
	Scope Scope

	IsRead     *bool  // nil leaves both read states in
	OnlyUnread bool   // deprecated alias, OR'd with IsRead=false
	Type       string // values outside the known enum are silently ignored
	Q          string // case-insensitive substring on message
	From       string // YYYY-MM-DD or RFC3339
	To         string // widened to end of day so the range includes it
	Take       int
	CursorID   string
	Ascending  bool
}

// NotificationPage bundles one page of results with the resume token.
type NotificationPage struct {
	Items      []NotificationDTO
	NextCursor string
}

// NotificationService manages task notifications and their read state.
type NotificationService struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, timeNow: time.Now}, nil
}

// scopedQuery returns a notification query constrained to rows the caller
// transitively owns: task -> client -> managing user. Admins see everything;
// agents and QC reviewers see notifications for tasks assigned to them.
func (s *NotificationService) scopedQuery(ctx context.Context, scope Scope) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Joins("JOIN tasks ON tasks.id = notifications.task_id").
		Joins("JOIN clients ON clients.id = tasks.client_id")

	switch scope.Role {
	case models.RoleAdmin:
		return query
	case models.RoleAccountManager:
		return query.Where("clients.manager_id = ?", scope.UserID)
	default:
		return query.Where("tasks.assigned_to_id = ?", scope.UserID)
	}
}

// List returns one cursor page of notifications matching the filters.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(input.Scope.UserID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	query := s.scopedQuery(ctx, input.Scope)

	// onlyUnread is the deprecated spelling; either flag filtering to unread wins.
	if input.OnlyUnread {
		query = query.Where("notifications.is_read = ?", false)
	} else if input.IsRead != nil {
		query = query.Where("notifications.is_read = ?", *input.IsRead)
	}

	if ntype := strings.TrimSpace(input.Type); ntype != "" && models.ValidNotificationType(ntype) {
		query = query.Where("notifications.type = ?", ntype)
	}

	if q := strings.TrimSpace(input.Q); q != "" {
		query = query.Where("LOWER(notifications.message) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	if from, ok := parseDate(input.From); ok {
		query = query.Where("notifications.created_at >= ?", from)
	}
	if to, ok := parseDate(input.To); ok {
		query = query.Where("notifications.created_at <= ?", endOfDay(to))
	}

	take := clampTake(input.Take)

	anchor, err := resolveCursor(s.db.WithContext(ctx), "notifications", "created_at", input.CursorID)
	if err != nil {
		return nil, err
	}
	query = applyCursor(query, "notifications", "created_at", anchor, input.Ascending)

	var rows []models.Notification
	if err := query.
		Preload("Task").
		Preload("Task.Client").
		Order(orderClause("notifications", "created_at", input.Ascending)).
		Limit(take).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list: %w", err)
	}

	page := &NotificationPage{
		Items:      mapNotificationRows(rows),
		NextCursor: nextCursor(rows, take, func(n models.Notification) string { return n.ID }),
	}
	return page, nil
}

// UnreadCount returns the number of unread notifications in the caller scope.
func (s *NotificationService) UnreadCount(ctx context.Context, scope Scope) (int64, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(scope.UserID) == "" {
		return 0, apperrors.ErrUnauthorized
	}

	var count int64
	if err := s.scopedQuery(ctx, scope).
		Where("notifications.is_read = ?", false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flips the read flag on one notification. Ownership is re-checked
// in the mutation itself; rows outside the caller scope report not found so
// existence never leaks. The operation is idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, scope Scope, notificationID string) error {
	ctx = ensureContext(ctx)
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return apperrors.NewBadRequest("notification id is required")
	}

	now := s.timeNow().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND task_id IN (?)", notificationID, s.scopedTaskIDs(ctx, scope)).
		Where("is_read = ?", false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Nothing flipped: either already read (fine, idempotent) or not ours.
	var exists int64
	if err := s.scopedQuery(ctx, scope).
		Where("notifications.id = ?", notificationID).
		Count(&exists).Error; err != nil {
		return fmt.Errorf("notification service: verify ownership: %w", err)
	}
	if exists == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification in the caller scope as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, scope Scope) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(scope.UserID) == "" {
		return apperrors.ErrUnauthorized
	}

	now := s.timeNow().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_read = ? AND task_id IN (?)", false, s.scopedTaskIDs(ctx, scope)).
		Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}
	return nil
}

// Create registers a new notification against a task.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	taskID := strings.TrimSpace(input.TaskID)
	if taskID == "" {
		return nil, errors.New("notification service: task id is required")
	}
	if !models.ValidNotificationType(string(input.Type)) {
		return nil, fmt.Errorf("notification service: unknown type %q", input.Type)
	}

	notification := models.Notification{
		TaskID:  taskID,
		Type:    input.Type,
		Message: strings.TrimSpace(input.Message),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(string(input.Type)).Inc()

	dto := mapNotification(notification)
	return &dto, nil
}

// scopedTaskIDs builds the task-id subquery that implements tenant isolation
// for mutations.
func (s *NotificationService) scopedTaskIDs(ctx context.Context, scope Scope) *gorm.DB {
	query := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("tasks.id").
		Joins("JOIN clients ON clients.id = tasks.client_id")

	switch scope.Role {
	case models.RoleAdmin:
		return query
	case models.RoleAccountManager:
		return query.Where("clients.manager_id = ?", scope.UserID)
	default:
		return query.Where("tasks.assigned_to_id = ?", scope.UserID)
	}
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		Type:      string(row.Type),
		Message:   row.Message,
		TaskID:    row.TaskID,
		Metadata:  decodeJSON(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
	}
	if row.Task != nil {
		dto.TaskName = row.Task.Name
		if row.Task.Client != nil {
			dto.ClientName = row.Task.Client.Name
		}
	}
	return dto
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
