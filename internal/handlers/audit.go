package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/services"
	"github.com/opsboard/opsboard/pkg/response"
)

// AuditHandler exposes the admin audit trail.
type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	input := services.AuditListInput{
		UserID:   c.Query("userId"),
		Action:   c.Query("action"),
		Result:   c.Query("result"),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "perPage", 50),
	}
	if since, err := time.Parse(time.RFC3339, c.Query("since")); err == nil {
		input.Since = &since
	}
	if until, err := time.Parse(time.RFC3339, c.Query("until")); err == nil {
		input.Until = &until
	}

	logs, total, err := h.audit.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Page:    input.Page,
		PerPage: input.PageSize,
		Total:   int(total),
	})
}
