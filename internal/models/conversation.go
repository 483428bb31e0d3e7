package models

import "time"

// ConversationType distinguishes two-party DMs from group threads.
type ConversationType string

const (
	ConversationTypeDM    ConversationType = "dm"
	ConversationTypeGroup ConversationType = "group"
)

// Conversation is a chat thread. DM conversations carry a canonical PairKey
// ("dm:<loID>:<hiID>", participant ids sorted) with a unique index so two
// concurrent find-or-create calls for the same pair cannot both insert.
type Conversation struct {
	BaseModel

	Type    ConversationType `gorm:"type:varchar(16);not null;index" json:"type"`
	PairKey *string          `gorm:"uniqueIndex" json:"-"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
	Messages     []ChatMessage             `gorm:"foreignKey:ConversationID" json:"-"`
}

// ConversationParticipant links a user into a conversation. A dm-typed
// conversation must have exactly two participant rows.
type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ConversationID string    `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_user" json:"conversation_id"`
	UserID         string    `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_user;index" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DMPairKey returns the canonical unordered pair key for two user ids.
func DMPairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}
