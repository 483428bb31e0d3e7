package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/pkg/crypto"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
)

// CreateUserInput describes a new operator account.
type CreateUserInput struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=128"`
	Role        string `json:"role" validate:"required"`
}

// UpdateUserInput carries partial account updates; nil fields are untouched.
type UpdateUserInput struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	IsActive    *bool   `json:"is_active"`
	Password    *string `json:"password"`
}

// UserService manages operator accounts.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// List returns all accounts. Admin only; the router enforces the role.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list: %w", err)
	}
	return users, nil
}

// ListAgents returns active data-entry agents, for the assignment picker.
func (s *UserService) ListAgents(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleAgent, true).
		Order("username ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list agents: %w", err)
	}
	return users, nil
}

// Get loads one account by id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: get: %w", err)
	}
	return &user, nil
}

// Create registers a new account with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	if !models.ValidRole(input.Role) {
		return nil, apperrors.NewBadRequest("unknown role")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Username:    strings.ToLower(strings.TrimSpace(input.Username)),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		Password:    hash,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        models.Role(input.Role),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("username or email already in use")
		}
		return nil, fmt.Errorf("user service: create: %w", err)
	}
	return &user, nil
}

// Update applies partial changes to an account.
func (s *UserService) Update(ctx context.Context, userID string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*input.DisplayName)
	}
	if input.Role != nil {
		if !models.ValidRole(*input.Role) {
			return nil, apperrors.NewBadRequest("unknown role")
		}
		updates["role"] = *input.Role
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Password != nil {
		hash, err := crypto.HashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("user service: hash password: %w", err)
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update: %w", err)
	}
	return user, nil
}

// Deactivate soft-deletes an account; sessions are revoked by the auth layer.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", strings.TrimSpace(userID)).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("user service: deactivate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
