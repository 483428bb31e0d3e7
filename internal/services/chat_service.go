package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/opsboard/opsboard/internal/models"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
	"github.com/opsboard/opsboard/pkg/metrics"
)

const maxMessageRunes = 4000

// ConversationDTO is the API shape of a chat thread.
type ConversationDTO struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Participants []ParticipantDTO `json:"participants"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ParticipantDTO identifies a member of a conversation.
type ParticipantDTO struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// MessageDTO is the API shape of a chat message, reactions pre-aggregated.
type MessageDTO struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	SenderName     string        `json:"sender_name,omitempty"`
	Content        string        `json:"content"`
	Reactions      []ReactionDTO `json:"reactions"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ReactionDTO groups one emoji with everyone who used it, in the order the
// emoji was first seen on the message.
type ReactionDTO struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	UserIDs []string `json:"userIds"`
}

// ListMessagesInput pages through a conversation's history.
type ListMessagesInput struct {
	Scope          Scope
	ConversationID string
	Take           int
	CursorID       string
}

// SearchMessagesInput filters a conversation's history.
type SearchMessagesInput struct {
	Scope          Scope
	ConversationID string
	Q              string
	From           string
	To             string
	Take           int
	CursorID       string
}

// MessagePage bundles one page of messages with the resume token.
type MessagePage struct {
	Items      []MessageDTO
	NextCursor string
}

// ChatService owns conversations, messages, and reactions.
type ChatService struct {
	db *gorm.DB
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB) (*ChatService, error) {
	if db == nil {
		return nil, errors.New("chat service: db is required")
	}
	return &ChatService{db: db}, nil
}

// FindOrCreateDM returns the DM conversation between the caller and the peer,
// creating it when absent. The canonical pair key carries a unique index, so
// when two calls race the loser retries the lookup instead of inserting a
// duplicate thread.
func (s *ChatService) FindOrCreateDM(ctx context.Context, scope Scope, peerID string) (*ConversationDTO, error) {
	ctx = ensureContext(ctx)

	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, apperrors.NewBadRequest("peer id is required")
	}
	if peerID == scope.UserID {
		return nil, apperrors.NewBadRequest("cannot open a conversation with yourself")
	}

	var peer models.User
	if err := s.db.WithContext(ctx).First(&peer, "id = ?", peerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("chat service: load peer: %w", err)
	}

	pairKey := models.DMPairKey(scope.UserID, peerID)

	if dto, err := s.findDM(ctx, pairKey); err == nil {
		return dto, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conversation := models.Conversation{
		Type:    models.ConversationTypeDM,
		PairKey: &pairKey,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversation).Error; err != nil {
			return err
		}
		participants := []models.ConversationParticipant{
			{ConversationID: conversation.ID, UserID: scope.UserID},
			{ConversationID: conversation.ID, UserID: peerID},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost the race: the other caller inserted the thread.
			return s.findDM(ctx, pairKey)
		}
		return nil, fmt.Errorf("chat service: create dm: %w", err)
	}

	return s.findDM(ctx, pairKey)
}

func (s *ChatService) findDM(ctx context.Context, pairKey string) (*ConversationDTO, error) {
	var conversation models.Conversation
	if err := s.db.WithContext(ctx).
		Preload("Participants.User").
		Where("pair_key = ?", pairKey).
		First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("chat service: find dm: %w", err)
	}
	return mapConversation(conversation), nil
}

// ListConversations returns every thread the caller participates in, most
// recently created first.
func (s *ChatService) ListConversations(ctx context.Context, scope Scope) ([]ConversationDTO, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(scope.UserID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var conversations []models.Conversation
	if err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", scope.UserID).
		Preload("Participants.User").
		Order("conversations.created_at DESC, conversations.id DESC").
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("chat service: list conversations: %w", err)
	}

	out := make([]ConversationDTO, 0, len(conversations))
	for _, conversation := range conversations {
		out = append(out, *mapConversation(conversation))
	}
	return out, nil
}

// SendMessage appends a message to a conversation the caller belongs to.
// Content is HTML-escaped at write time so stored history is inert.
func (s *ChatService) SendMessage(ctx context.Context, scope Scope, conversationID, content string) (*MessageDTO, error) {
	ctx = ensureContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewBadRequest("message content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageRunes {
		return nil, apperrors.NewBadRequest("message content exceeds 4000 characters")
	}

	if err := s.requireMembership(ctx, scope.UserID, conversationID); err != nil {
		return nil, err
	}

	var conversation models.Conversation
	if err := s.db.WithContext(ctx).First(&conversation, "id = ?", conversationID).Error; err != nil {
		return nil, fmt.Errorf("chat service: load conversation: %w", err)
	}

	message := models.ChatMessage{
		ConversationID: conversationID,
		SenderID:       scope.UserID,
		Content:        html.EscapeString(content),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("chat service: send message: %w", err)
	}
	metrics.ChatMessagesSent.WithLabelValues(string(conversation.Type)).Inc()

	if err := s.db.WithContext(ctx).Preload("Sender").First(&message, "id = ?", message.ID).Error; err != nil {
		return nil, fmt.Errorf("chat service: reload message: %w", err)
	}
	dto := mapMessage(message)
	return &dto, nil
}

// ListMessages returns one cursor page of a conversation's history, newest
// first, reactions aggregated per message.
func (s *ChatService) ListMessages(ctx context.Context, input ListMessagesInput) (*MessagePage, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMembership(ctx, input.Scope.UserID, input.ConversationID); err != nil {
		return nil, err
	}

	take := clampTake(input.Take)
	anchor, err := resolveCursor(s.db.WithContext(ctx), "chat_messages", "created_at", input.CursorID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chat_messages.conversation_id = ?", input.ConversationID)
	query = applyCursor(query, "chat_messages", "created_at", anchor, false)

	var rows []models.ChatMessage
	if err := query.
		Preload("Sender").
		Preload("Reactions").
		Order(orderClause("chat_messages", "created_at", false)).
		Limit(take).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat service: list messages: %w", err)
	}

	return &MessagePage{
		Items:      mapMessages(rows),
		NextCursor: nextCursor(rows, take, func(m models.ChatMessage) string { return m.ID }),
	}, nil
}

// SearchMessages filters a conversation's history by text and date range.
// Soft-deleted messages never match.
func (s *ChatService) SearchMessages(ctx context.Context, input SearchMessagesInput) (*MessagePage, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMembership(ctx, input.Scope.UserID, input.ConversationID); err != nil {
		return nil, err
	}

	take := clampTake(input.Take)
	anchor, err := resolveCursor(s.db.WithContext(ctx), "chat_messages", "created_at", input.CursorID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chat_messages.conversation_id = ?", input.ConversationID)

	if q := strings.TrimSpace(input.Q); q != "" {
		// Escaped at write time, so escape the needle too or markup hides matches.
		query = query.Where("LOWER(chat_messages.content) LIKE ?", "%"+strings.ToLower(html.EscapeString(q))+"%")
	}
	if from, ok := parseDate(input.From); ok {
		query = query.Where("chat_messages.created_at >= ?", from)
	}
	if to, ok := parseDate(input.To); ok {
		query = query.Where("chat_messages.created_at <= ?", endOfDay(to))
	}

	query = applyCursor(query, "chat_messages", "created_at", anchor, false)

	var rows []models.ChatMessage
	if err := query.
		Preload("Sender").
		Preload("Reactions").
		Order(orderClause("chat_messages", "created_at", false)).
		Limit(take).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("chat service: search messages: %w", err)
	}

	return &MessagePage{
		Items:      mapMessages(rows),
		NextCursor: nextCursor(rows, take, func(m models.ChatMessage) string { return m.ID }),
	}, nil
}

// DeleteMessage soft-deletes a message. Only the sender may delete; anyone
// else gets not found so message existence never leaks across threads.
func (s *ChatService) DeleteMessage(ctx context.Context, scope Scope, messageID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", strings.TrimSpace(messageID), scope.UserID).
		Delete(&models.ChatMessage{})
	if result.Error != nil {
		return fmt.Errorf("chat service: delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AddReaction records an emoji reaction. Reacting twice with the same emoji
// is a no-op thanks to the (message, user, emoji) unique index.
func (s *ChatService) AddReaction(ctx context.Context, scope Scope, messageID, emoji string) error {
	ctx = ensureContext(ctx)

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return apperrors.NewBadRequest("emoji is required")
	}

	message, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.requireMembership(ctx, scope.UserID, message.ConversationID); err != nil {
		return err
	}

	reaction := models.Reaction{MessageID: message.ID, UserID: scope.UserID, Emoji: emoji}
	if err := s.db.WithContext(ctx).Create(&reaction).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("chat service: add reaction: %w", err)
	}
	return nil
}

// RemoveReaction deletes the caller's reaction. Removing a reaction that was
// never added succeeds quietly.
func (s *ChatService) RemoveReaction(ctx context.Context, scope Scope, messageID, emoji string) error {
	ctx = ensureContext(ctx)

	message, err := s.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.requireMembership(ctx, scope.UserID, message.ConversationID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", message.ID, scope.UserID, strings.TrimSpace(emoji)).
		Delete(&models.Reaction{}).Error; err != nil {
		return fmt.Errorf("chat service: remove reaction: %w", err)
	}
	return nil
}

func (s *ChatService) loadMessage(ctx context.Context, messageID string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	if err := s.db.WithContext(ctx).First(&message, "id = ?", strings.TrimSpace(messageID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("chat service: load message: %w", err)
	}
	return &message, nil
}

// requireMembership verifies the caller belongs to the conversation. A miss
// is forbidden rather than not found: thread ids circulate between members,
// so hiding existence buys nothing.
func (s *ChatService) requireMembership(ctx context.Context, userID, conversationID string) error {
	userID = strings.TrimSpace(userID)
	conversationID = strings.TrimSpace(conversationID)
	if userID == "" {
		return apperrors.ErrUnauthorized
	}
	if conversationID == "" {
		return apperrors.NewBadRequest("conversation id is required")
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("chat service: membership check: %w", err)
	}
	if count == 0 {
		return apperrors.ErrForbidden
	}
	return nil
}

func mapConversation(conversation models.Conversation) *ConversationDTO {
	dto := &ConversationDTO{
		ID:        conversation.ID,
		Type:      string(conversation.Type),
		CreatedAt: conversation.CreatedAt,
	}
	for _, participant := range conversation.Participants {
		p := ParticipantDTO{UserID: participant.UserID}
		if participant.User != nil {
			p.Username = participant.User.Username
			p.DisplayName = participant.User.DisplayName
		}
		dto.Participants = append(dto.Participants, p)
	}
	return dto
}

func mapMessages(rows []models.ChatMessage) []MessageDTO {
	out := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapMessage(row))
	}
	return out
}

func mapMessage(row models.ChatMessage) MessageDTO {
	dto := MessageDTO{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Content:        row.Content,
		Reactions:      AggregateReactions(row.Reactions),
		CreatedAt:      row.CreatedAt,
	}
	if row.Sender != nil {
		dto.SenderName = row.Sender.DisplayName
		if dto.SenderName == "" {
			dto.SenderName = row.Sender.Username
		}
	}
	return dto
}

// AggregateReactions groups raw reaction rows per emoji, preserving the order
// each emoji first appeared.
func AggregateReactions(rows []models.Reaction) []ReactionDTO {
	out := []ReactionDTO{}
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		at, ok := index[row.Emoji]
		if !ok {
			index[row.Emoji] = len(out)
			out = append(out, ReactionDTO{Emoji: row.Emoji})
			at = len(out) - 1
		}
		out[at].Count++
		out[at].UserIDs = append(out[at].UserIDs, row.UserID)
	}
	return out
}
