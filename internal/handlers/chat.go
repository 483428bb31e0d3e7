package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/services"
	"github.com/opsboard/opsboard/pkg/response"
)

// ChatHandler exposes conversations, messages, and reactions.
type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type openDMRequest struct {
	PeerID string `json:"peer_id" validate:"required,uuid"`
}

// POST /api/chat/conversations/dm
func (h *ChatHandler) OpenDM(c *gin.Context) {
	var req openDMRequest
	if !bindAndValidate(c, &req) {
		return
	}

	conversation, err := h.chat.FindOrCreateDM(requestContext(c), callerScope(c), req.PeerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversation)
}

// GET /api/chat/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.chat.ListConversations(requestContext(c), callerScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversations)
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// POST /api/chat/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.chat.SendMessage(requestContext(c), callerScope(c), c.Param("id"), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

// GET /api/chat/conversations/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	page, err := h.chat.ListMessages(requestContext(c), services.ListMessagesInput{
		Scope:          callerScope(c),
		ConversationID: c.Param("id"),
		Take:           parseIntQuery(c, "take", 0),
		CursorID:       c.Query("cursorId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{NextCursor: page.NextCursor})
}

// GET /api/chat/conversations/:id/messages/search
func (h *ChatHandler) SearchMessages(c *gin.Context) {
	cursor := c.Query("cursor")
	if cursor == "" {
		cursor = c.Query("cursorId")
	}
	page, err := h.chat.SearchMessages(requestContext(c), services.SearchMessagesInput{
		Scope:          callerScope(c),
		ConversationID: c.Param("id"),
		Q:              c.Query("q"),
		From:           c.Query("from"),
		To:             c.Query("to"),
		Take:           parseIntQuery(c, "take", 0),
		CursorID:       cursor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"results":    page.Items,
		"nextCursor": page.NextCursor,
	})
}

// DELETE /api/chat/messages/:id
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	if err := h.chat.DeleteMessage(requestContext(c), callerScope(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// POST /api/chat/messages/:id/reactions
func (h *ChatHandler) AddReaction(c *gin.Context) {
	var req reactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.chat.AddReaction(requestContext(c), callerScope(c), c.Param("id"), req.Emoji); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reacted": true})
}

// DELETE /api/chat/messages/:id/reactions/:emoji
func (h *ChatHandler) RemoveReaction(c *gin.Context) {
	if err := h.chat.RemoveReaction(requestContext(c), callerScope(c), c.Param("id"), c.Param("emoji")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
