package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/requestdata"
	"github.com/yungbote/voicenotes-backend/internal/response"
	"github.com/yungbote/voicenotes-backend/internal/services"
)

type TaskHandler struct {
	log         *logger.Logger
	taskService services.TaskService
}

func NewTaskHandler(log *logger.Logger, tsvc services.TaskService) *TaskHandler {
	return &TaskHandler{
		log:         log.With("handler", "TaskHandler"),
		taskService: tsvc,
	}
}

// POST /api/tasks/extract
// Runs extraction over free text (typed or an already-fetched transcript)
// and persists the resulting tasks.
func (h *TaskHandler) Extract(c *gin.Context) {
	var body struct {
		Text        string `json:"text"`
		IngestionID string `json:"ingestion_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	ownerID := requestdata.OwnerID(c.Request.Context())
	tasks, err := h.taskService.ExtractFromText(c.Request.Context(), ownerID, body.IngestionID, body.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"tasks_created": len(tasks),
		"tasks":         tasks,
	})
}

// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context(), requestdata.OwnerID(c.Request.Context()))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": tasks})
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	task, err := h.taskService.Get(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, task)
}

// PATCH /api/tasks/:id
// Partial update: completion toggle and field edits share one endpoint.
func (h *TaskHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Type        *string `json:"type"`
		Priority    *string `json:"priority"`
		DueDate     *string `json:"due_date"`
		Completed   *bool   `json:"completed"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), id, services.TaskUpdate{
		Title:       body.Title,
		Description: body.Description,
		Type:        body.Type,
		Priority:    body.Priority,
		DueDate:     body.DueDate,
		Completed:   body.Completed,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if err := h.taskService.Delete(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
