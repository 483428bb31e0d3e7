package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/app"
	iauth "github.com/opsboard/opsboard/internal/auth"
	"github.com/opsboard/opsboard/internal/database"
	"github.com/opsboard/opsboard/internal/database/testutil"
	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/pkg/crypto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "opsboard-test",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.RateLimit.Requests = 0 // disabled for tests
	cfg.Monitoring.Prometheus.Enabled = false

	router, err := NewRouter(db, jwtSvc, sessions, cfg)
	require.NoError(t, err)
	return router, db
}

func createAccount(t *testing.T, db *gorm.DB, username, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    username + "@opsboard.test",
		Password: hash,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func login(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()

	body, err := json.Marshal(gin.H{"identifier": username, "password": password})
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var payload struct {
		Data struct {
			Tokens struct {
				AccessToken string `json:"access_token"`
			} `json:"tokens"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Data.Tokens.AccessToken)
	return payload.Data.Tokens.AccessToken
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"status":"ok"`)
}

func TestRouterRejectsAnonymousAPIAccess(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRouterLoginFlow(t *testing.T) {
	router, db := newTestRouter(t)
	createAccount(t, db, "agent", "correct-horse-battery", models.RoleAgent)

	token := login(t, router, "agent", "correct-horse-battery")

	t.Run("me", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusOK, recorder.Code)
		require.Contains(t, recorder.Body.String(), `"username":"agent"`)
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		body, _ := json.Marshal(gin.H{"identifier": "agent", "password": "wrong"})
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestRouterRoleEnforcement(t *testing.T) {
	router, db := newTestRouter(t)
	createAccount(t, db, "agent", "correct-horse-battery", models.RoleAgent)
	createAccount(t, db, "admin", "correct-horse-battery", models.RoleAdmin)

	agentToken := login(t, router, "agent", "correct-horse-battery")
	adminToken := login(t, router, "admin", "correct-horse-battery")

	t.Run("agent cannot list users", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer "+agentToken)
		router.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("admin can list users", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		router.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("agent cannot list clients", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
		req.Header.Set("Authorization", "Bearer "+agentToken)
		router.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusForbidden, recorder.Code)
	})
}

func TestRouterSeedDataLogin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	password := database.TakeSeededAdminPassword()
	require.NotEmpty(t, password)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "seed-secret"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	cfg := &app.Config{}
	router, err := NewRouter(db, jwtSvc, sessions, cfg)
	require.NoError(t, err)

	login(t, router, "admin", password)
}
