package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opsboard/opsboard/internal/models"
	"github.com/opsboard/opsboard/internal/services"
	"github.com/opsboard/opsboard/pkg/response"
)

// TaskHandler exposes the task workflow and agent history.
type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// GET /api/tasks/history/:agentId
func (h *TaskHandler) History(c *gin.Context) {
	var statuses []string
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		statuses = strings.Split(raw, ",")
	}

	rows, err := h.tasks.History(requestContext(c), services.HistoryInput{
		Scope:     callerScope(c),
		AgentID:   c.Param("agentId"),
		Limit:     parseIntQuery(c, "limit", 0),
		DateField: c.Query("date"),
		Statuses:  statuses,
		Q:         c.Query("q"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

type createTaskRequest struct {
	Name                 string     `json:"name" validate:"required,max=256"`
	ClientID             string     `json:"client_id" validate:"required,uuid"`
	AssignedToID         string     `json:"assigned_to_id" validate:"omitempty,uuid"`
	FrequencyDays        int        `json:"frequency_days" validate:"gte=0"`
	IdealDurationMinutes *int       `json:"ideal_duration_minutes" validate:"omitempty,gt=0"`
	DueAt                *time.Time `json:"due_at"`
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), callerScope(c), services.CreateTaskInput{
		Name:                 req.Name,
		ClientID:             req.ClientID,
		AssignedToID:         req.AssignedToID,
		FrequencyDays:        req.FrequencyDays,
		IdealDurationMinutes: req.IdealDurationMinutes,
		DueAt:                req.DueAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(requestContext(c), callerScope(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

type updateStatusRequest struct {
	Status                string   `json:"status" validate:"required"`
	PerformanceRating     *float64 `json:"performance_rating" validate:"omitempty,gte=0,lte=5"`
	ActualDurationMinutes *int     `json:"actual_duration_minutes" validate:"omitempty,gt=0"`
}

// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.UpdateStatus(requestContext(c), services.UpdateTaskStatusInput{
		Scope:                 callerScope(c),
		TaskID:                c.Param("id"),
		Status:                models.TaskStatus(req.Status),
		PerformanceRating:     req.PerformanceRating,
		ActualDurationMinutes: req.ActualDurationMinutes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}
