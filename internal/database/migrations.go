package database

import (
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Task{},
		&models.Notification{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.ChatMessage{},
		&models.Reaction{},
		&models.Session{},
		&models.AuditLog{},
	)
}

// SeedData provisions the initial administrator account when the user table
// is empty. The generated password must be rotated on first login.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password, err := crypto.GenerateToken(12)
	if err != nil {
		return err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:    "admin",
		Email:       "admin@localhost",
		Password:    hash,
		DisplayName: "Administrator",
		Role:        models.RoleAdmin,
		IsActive:    true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	seededAdminPassword = password
	return nil
}

// seededAdminPassword holds the one-time generated admin password so the
// bootstrap path can print it exactly once.
var seededAdminPassword string

// TakeSeededAdminPassword returns the generated admin password, clearing it.
func TakeSeededAdminPassword() string {
	pw := seededAdminPassword
	seededAdminPassword = ""
	return pw
}
