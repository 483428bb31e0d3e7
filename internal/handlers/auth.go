package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/opsboard/opsboard/internal/auth"
	"github.com/opsboard/opsboard/internal/middleware"
	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/internal/services"
	"github.com/opsboard/opsboard/pkg/crypto"
	appErrors "github.com/opsboard/opsboard/pkg/errors"
	"github.com/opsboard/opsboard/pkg/metrics"
	"github.com/opsboard/opsboard/pkg/response"
)

// AuthHandler manages authentication flows (login/refresh/logout/me).
type AuthHandler struct {
	db       *gorm.DB
	sessions *iauth.SessionService
	audit    *services.AuditService
}

func NewAuthHandler(db *gorm.DB, sessions *iauth.SessionService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{db: db, sessions: sessions, audit: audit}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))
	ctx := requestContext(c)

	var user models.User
	err := h.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, appErrors.ErrInternalServer)
			return
		}
		h.failLogin(c, identifier)
		return
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, req.Password) {
		h.failLogin(c, identifier)
		return
	}

	pair, _, err := h.sessions.CreateSession(ctx, &user, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	now := time.Now().UTC()
	_ = h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"last_login_at": now,
		"last_login_ip": c.ClientIP(),
	}).Error

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	h.audit.Record(ctx, services.AuditEntry{
		UserID:    &user.ID,
		Username:  user.Username,
		Action:    "auth.login",
		Result:    "success",
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"user":   userPayload(&user),
	})
}

func (h *AuthHandler) failLogin(c *gin.Context, identifier string) {
	metrics.AuthAttempts.WithLabelValues("failure").Inc()
	h.audit.Record(requestContext(c), services.AuditEntry{
		Username:  identifier,
		Action:    "auth.login",
		Result:    "failure",
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	response.Error(c, appErrors.ErrInvalidCredentials)
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.Refresh(requestContext(c), req.RefreshToken, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	sessionID := c.GetString(middleware.CtxSessionIDKey)

	ctx := requestContext(c)
	if err := h.sessions.Revoke(ctx, userID, sessionID); err != nil {
		if !errors.Is(err, iauth.ErrSessionNotFound) {
			response.Error(c, appErrors.ErrInternalServer)
			return
		}
	}

	h.audit.Record(ctx, services.AuditEntry{
		UserID:    &userID,
		Action:    "auth.logout",
		Result:    "success",
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	var user models.User
	if err := h.db.WithContext(requestContext(c)).First(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, userPayload(&user))
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"role":         user.Role,
	}
}
