package models

import "gorm.io/gorm"

// ChatMessage is a message inside a conversation. Deletion is soft: the row
// keeps its place in history and queries exclude it via DeletedAt.
type ChatMessage struct {
	BaseModel

	ConversationID string        `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID" json:"-"`

	SenderID string `gorm:"type:uuid;not null;index" json:"sender_id"`
	Sender   *User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	Content string `gorm:"type:text;not null" json:"content"`

	Reactions []Reaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Reaction is a single emoji reaction by one user on one message.
type Reaction struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	MessageID string `gorm:"type:uuid;not null;uniqueIndex:idx_message_user_emoji" json:"message_id"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_message_user_emoji" json:"user_id"`
	Emoji     string `gorm:"type:varchar(32);not null;uniqueIndex:idx_message_user_emoji" json:"emoji"`
}
