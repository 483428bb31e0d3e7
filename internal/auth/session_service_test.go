package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/database/testutil"
	"github.com/opsboard/opsboard/internal/models"
)

func newSessionFixture(t *testing.T, cfg SessionConfig) (*SessionService, *gorm.DB, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	user := models.User{
		Username: "manager",
		Email:    "manager@example.com",
		Password: "hash",
		Role:     models.RoleAccountManager,
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)

	jwtSvc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "opsboard"})
	require.NoError(t, err)

	svc, err := NewSessionService(db, jwtSvc, cfg)
	require.NoError(t, err)

	return svc, db, &user
}

func TestSessionCreateAndRefresh(t *testing.T) {
	svc, _, user := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()

	pair, session, err := svc.CreateSession(ctx, user, SessionMetadata{IPAddress: "10.0.0.9"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, user.ID, session.UserID)

	rotated, refreshed, err := svc.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.NoError(t, err)
	require.Equal(t, session.ID, refreshed.ID)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The old token is unusable after rotation.
	_, _, err = svc.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRefreshRejectsExpired(t *testing.T) {
	current := time.Now()
	svc, _, user := newSessionFixture(t, SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           func() time.Time { return current },
	})
	ctx := context.Background()

	pair, _, err := svc.CreateSession(ctx, user, SessionMetadata{})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, _, err = svc.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionRevokeAndCleanup(t *testing.T) {
	svc, db, user := newSessionFixture(t, SessionConfig{})
	ctx := context.Background()

	pair, session, err := svc.CreateSession(ctx, user, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, user.ID, session.ID))
	_, _, err = svc.Refresh(ctx, pair.RefreshToken, SessionMetadata{})
	require.ErrorIs(t, err, ErrSessionRevoked)

	// Revoking again reports not found; the row is already revoked.
	require.ErrorIs(t, svc.Revoke(ctx, user.ID, session.ID), ErrSessionNotFound)

	removed, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Count(&count).Error)
	require.Zero(t, count)
}
