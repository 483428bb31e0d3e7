package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/services"
	apperrors "github.com/opsboard/opsboard/pkg/errors"
	"github.com/opsboard/opsboard/pkg/response"
)

// UtilsHandler hosts small helper endpoints for the UI.
type UtilsHandler struct {
	probe *services.URLProbe
}

func NewUtilsHandler(probe *services.URLProbe) *UtilsHandler {
	return &UtilsHandler{probe: probe}
}

// GET /api/utils/validate-url?url=
func (h *UtilsHandler) ValidateURL(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		response.Error(c, apperrors.NewBadRequest("url query parameter is required"))
		return
	}

	result := h.probe.Validate(requestContext(c), raw)
	response.Success(c, http.StatusOK, result)
}
