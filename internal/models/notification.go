package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType enumerates the notification categories the UI understands.
type NotificationType string

const (
	NotificationTypeGeneral         NotificationType = "general"
	NotificationTypePerformance     NotificationType = "performance"
	NotificationTypeFrequencyMissed NotificationType = "frequency_missed"
)

// ValidNotificationType reports whether the supplied value is a known type.
func ValidNotificationType(value string) bool {
	switch NotificationType(value) {
	case NotificationTypeGeneral, NotificationTypePerformance, NotificationTypeFrequencyMissed:
		return true
	}
	return false
}

// Notification is an in-app alert attached to a task. Visibility is derived
// transitively: task -> client -> managing user. Rows are never hard-deleted
// by the API surface; only the read flag mutates.
type Notification struct {
	BaseModel

	Type    NotificationType `gorm:"type:varchar(32);not null;index" json:"type"`
	Message string           `gorm:"type:text;not null" json:"message"`

	TaskID string `gorm:"type:uuid;not null;index" json:"task_id"`
	Task   *Task  `gorm:"foreignKey:TaskID" json:"task,omitempty"`

	Metadata datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
