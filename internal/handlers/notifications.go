package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/services"
	"github.com/opsboard/opsboard/pkg/response"
)

// NotificationHandler exposes the notification inbox.
type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	input := services.ListNotificationsInput{
		Scope:     callerScope(c),
		IsRead:    parseBoolQuery(c, "isRead"),
		Type:      c.Query("type"),
		Q:         c.Query("q"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		Take:      parseIntQuery(c, "take", 0),
		CursorID:  c.Query("cursorId"),
		Ascending: strings.EqualFold(c.Query("sort"), "asc"),
	}
	if only := parseBoolQuery(c, "onlyUnread"); only != nil && *only {
		input.OnlyUnread = true
	}

	page, err := h.notifications.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Items, &response.Meta{NextCursor: page.NextCursor})
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(requestContext(c), callerScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

type markReadRequest struct {
	ID string `json:"id" validate:"required"`
}

// PATCH /api/notifications/mark-read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.notifications.MarkRead(requestContext(c), callerScope(c), req.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked": true})
}

// PATCH /api/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notifications.MarkAllRead(requestContext(c), callerScope(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"marked": true})
}
