package models

import "time"

// TaskStatus enumerates the task workflow states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusSubmitted  TaskStatus = "submitted"
	TaskStatusQCApproved TaskStatus = "qc_approved"
	TaskStatusQCRejected TaskStatus = "qc_rejected"
	TaskStatusCompleted  TaskStatus = "completed"
)

// ValidTaskStatus reports whether the supplied value is a known status.
func ValidTaskStatus(value string) bool {
	switch TaskStatus(value) {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusSubmitted,
		TaskStatusQCApproved, TaskStatusQCRejected, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a unit of client work assigned to a data-entry agent.
type Task struct {
	BaseModel

	Name     string  `gorm:"not null" json:"name"`
	ClientID string  `gorm:"type:uuid;not null;index" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	AssignedToID *string    `gorm:"type:uuid;index" json:"assigned_to_id"`
	AssignedTo   *User      `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	Status       TaskStatus `gorm:"type:varchar(32);not null;index;default:'pending'" json:"status"`

	// Performance metrics, populated during QC review.
	PerformanceRating     *float64 `json:"performance_rating"`
	IdealDurationMinutes  *int     `json:"ideal_duration_minutes"`
	ActualDurationMinutes *int     `json:"actual_duration_minutes"`

	// FrequencyDays is the expected completion cadence for recurring tasks;
	// zero means the task is one-off.
	FrequencyDays   int        `gorm:"default:0" json:"frequency_days"`
	DueAt           *time.Time `json:"due_at"`
	LastCompletedAt *time.Time `json:"last_completed_at"`

	Notifications []Notification `gorm:"foreignKey:TaskID" json:"-"`
}
