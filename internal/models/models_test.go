package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openModelTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&User{}, &Client{}, &Task{}, &Notification{},
		&Conversation{}, &ConversationParticipant{}, &ChatMessage{}, &Reaction{},
		&Session{}, &AuditLog{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestBaseModelGeneratesUUID(t *testing.T) {
	db := openModelTestDB(t)

	user := User{Username: "nora", Email: "nora@example.com", Password: "x", Role: RoleAgent}
	require.NoError(t, db.Create(&user).Error)
	require.NotEmpty(t, user.ID)

	client := Client{Name: "Acme Retail", ManagerID: user.ID}
	require.NoError(t, db.Create(&client).Error)
	require.NotEmpty(t, client.ID)
	require.False(t, client.CreatedAt.IsZero())
}

func TestDMPairKeyIsOrderInsensitive(t *testing.T) {
	require.Equal(t, DMPairKey("user-a", "user-b"), DMPairKey("user-b", "user-a"))
	require.Equal(t, "dm:user-a:user-b", DMPairKey("user-b", "user-a"))
}

func TestConversationPairKeyUnique(t *testing.T) {
	db := openModelTestDB(t)

	key := DMPairKey("u1", "u2")
	first := Conversation{Type: ConversationTypeDM, PairKey: &key}
	require.NoError(t, db.Create(&first).Error)

	dup := Conversation{Type: ConversationTypeDM, PairKey: &key}
	require.Error(t, db.Create(&dup).Error)
}

func TestChatMessageSoftDelete(t *testing.T) {
	db := openModelTestDB(t)

	conv := Conversation{Type: ConversationTypeGroup}
	require.NoError(t, db.Create(&conv).Error)

	msg := ChatMessage{ConversationID: conv.ID, SenderID: "u1", Content: "hello"}
	require.NoError(t, db.Create(&msg).Error)
	require.NoError(t, db.Delete(&msg).Error)

	var visible int64
	require.NoError(t, db.Model(&ChatMessage{}).Where("conversation_id = ?", conv.ID).Count(&visible).Error)
	require.Zero(t, visible)

	var total int64
	require.NoError(t, db.Unscoped().Model(&ChatMessage{}).Where("conversation_id = ?", conv.ID).Count(&total).Error)
	require.EqualValues(t, 1, total)
}

func TestReactionUniquePerUserAndEmoji(t *testing.T) {
	db := openModelTestDB(t)

	require.NoError(t, db.Create(&Reaction{MessageID: "m1", UserID: "u1", Emoji: "👍"}).Error)
	require.Error(t, db.Create(&Reaction{MessageID: "m1", UserID: "u1", Emoji: "👍"}).Error)
	require.NoError(t, db.Create(&Reaction{MessageID: "m1", UserID: "u2", Emoji: "👍"}).Error)
}

func TestEnumValidators(t *testing.T) {
	require.True(t, ValidRole("qc"))
	require.False(t, ValidRole("superuser"))

	require.True(t, ValidTaskStatus("qc_approved"))
	require.False(t, ValidTaskStatus("archived"))

	require.True(t, ValidNotificationType("frequency_missed"))
	require.False(t, ValidNotificationType("digest"))
}
