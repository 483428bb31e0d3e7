package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
)

// CreateClientInput describes a new client account.
type CreateClientInput struct {
	Name      string `json:"name" validate:"required,max=128"`
	ManagerID string `json:"manager_id" validate:"required,uuid"`
}

// ClientService manages client accounts and their manager assignment.
type ClientService struct {
	db *gorm.DB
}

// NewClientService constructs a ClientService.
func NewClientService(db *gorm.DB) (*ClientService, error) {
	if db == nil {
		return nil, errors.New("client service: db is required")
	}
	return &ClientService{db: db}, nil
}

// List returns the clients visible to the caller: all of them for admins,
// managed ones for account managers.
func (s *ClientService) List(ctx context.Context, scope Scope) ([]models.Client, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Client{})
	if scope.Role == models.RoleAccountManager {
		query = query.Where("manager_id = ?", scope.UserID)
	}

	var clients []models.Client
	if err := query.Order("name ASC").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("client service: list: %w", err)
	}
	return clients, nil
}

// Get loads one client in the caller scope.
func (s *ClientService) Get(ctx context.Context, scope Scope, clientID string) (*models.Client, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(clientID))
	if scope.Role == models.RoleAccountManager {
		query = query.Where("manager_id = ?", scope.UserID)
	}

	var client models.Client
	if err := query.First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("client service: get: %w", err)
	}
	return &client, nil
}

// Create registers a new client under an account manager.
func (s *ClientService) Create(ctx context.Context, input CreateClientInput) (*models.Client, error) {
	ctx = ensureContext(ctx)

	var manager models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND role IN ?", strings.TrimSpace(input.ManagerID),
			[]models.Role{models.RoleAccountManager, models.RoleAdmin}).
		First(&manager).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewBadRequest("manager not found or not a manager role")
		}
		return nil, fmt.Errorf("client service: load manager: %w", err)
	}

	client := models.Client{
		Name:      strings.TrimSpace(input.Name),
		ManagerID: manager.ID,
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, fmt.Errorf("client service: create: %w", err)
	}
	return &client, nil
}

// Reassign moves a client to a different account manager.
func (s *ClientService) Reassign(ctx context.Context, clientID, managerID string) (*models.Client, error) {
	ctx = ensureContext(ctx)

	client, err := s.Get(ctx, Scope{Role: models.RoleAdmin}, clientID)
	if err != nil {
		return nil, err
	}

	var manager models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND role IN ?", strings.TrimSpace(managerID),
			[]models.Role{models.RoleAccountManager, models.RoleAdmin}).
		First(&manager).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewBadRequest("manager not found or not a manager role")
		}
		return nil, fmt.Errorf("client service: load manager: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(client).Update("manager_id", manager.ID).Error; err != nil {
		return nil, fmt.Errorf("client service: reassign: %w", err)
	}
	return client, nil
}
