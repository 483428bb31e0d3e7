package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/services"
	"github.com/opsboard/opsboard/pkg/response"
)

// ClientHandler exposes client accounts.
type ClientHandler struct {
	clients *services.ClientService
}

func NewClientHandler(clients *services.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// GET /api/clients
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clients.List(requestContext(c), callerScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, clients)
}

// GET /api/clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clients.Get(requestContext(c), callerScope(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, client)
}

// POST /api/clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req services.CreateClientInput
	if !bindAndValidate(c, &req) {
		return
	}

	client, err := h.clients.Create(requestContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, client)
}

type reassignRequest struct {
	ManagerID string `json:"manager_id" validate:"required,uuid"`
}

// PATCH /api/clients/:id/manager
func (h *ClientHandler) Reassign(c *gin.Context) {
	var req reassignRequest
	if !bindAndValidate(c, &req) {
		return
	}

	client, err := h.clients.Reassign(requestContext(c), c.Param("id"), req.ManagerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, client)
}
