package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies the dashboard a user operates from.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleAccountManager Role = "account_manager"
	RoleAgent          Role = "agent"
	RoleQC             Role = "qc"
)

// ValidRole reports whether the supplied value is a known role.
func ValidRole(value string) bool {
	switch Role(value) {
	case RoleAdmin, RoleAccountManager, RoleAgent, RoleQC:
		return true
	}
	return false
}

// User describes an operator account: admins, account managers, data-entry
// agents, and QC reviewers.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	DisplayName string `json:"display_name"`
	Role        Role   `gorm:"type:varchar(32);not null;index;default:'agent'" json:"role"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	Clients  []Client  `gorm:"foreignKey:ManagerID" json:"-"`
	Tasks    []Task    `gorm:"foreignKey:AssignedToID" json:"-"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
