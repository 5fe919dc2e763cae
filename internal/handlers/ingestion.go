package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/voicenotes-backend/internal/apierr"
	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/requestdata"
	"github.com/yungbote/voicenotes-backend/internal/response"
	"github.com/yungbote/voicenotes-backend/internal/services"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

type IngestionHandler struct {
	log              *logger.Logger
	ingestionService services.IngestionService
}

func NewIngestionHandler(log *logger.Logger, isvc services.IngestionService) *IngestionHandler {
	return &IngestionHandler{
		log:              log.With("handler", "IngestionHandler"),
		ingestionService: isvc,
	}
}

// respondServiceError maps service errors onto the wire: apierr carries its
// own status, anything else is a 500.
func respondServiceError(c *gin.Context, err error) {
	var aerr *apierr.Error
	if errors.As(err, &aerr) {
		response.RespondError(c, aerr.Status, aerr.Code, aerr)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, "internal", err)
}

// POST /api/ingestions
// Multipart upload; runs the pipeline synchronously and returns the
// terminal record reference.
func (h *IngestionHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, services.MaxUploadBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	language := c.PostForm("language")
	ownerID := requestdata.OwnerID(c.Request.Context())

	ing, err := h.ingestionService.Upload(c.Request.Context(), ownerID, fileHeader.Filename, data, language)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"ingestion_id": ing.ID,
		"status":       ing.Status,
	})
}

// POST /api/ingestions/text
func (h *IngestionHandler) SubmitText(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	ing, err := h.ingestionService.SubmitText(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), body.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"ingestion_id": ing.ID,
		"status":       ing.Status,
	})
}

// GET /api/ingestions/:id/status
func (h *IngestionHandler) Status(c *gin.Context) {
	ing, err := h.ingestionService.Status(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	payload := gin.H{
		"ingestion_id":      ing.ID,
		"status":            ing.Status,
		"original_filename": ing.OriginalFilename,
		"duration_seconds":  ing.DurationSeconds,
		"created_at":        ing.CreatedAt,
	}
	if ing.ErrorMessage != "" {
		payload["error_message"] = ing.ErrorMessage
	}
	if ing.CompletedAt != nil {
		payload["completed_at"] = ing.CompletedAt
	}
	response.RespondOK(c, payload)
}

// GET /api/ingestions/:id/transcript
// 202 while the record is non-terminal, 200 with the transcript once
// completed, the stored failure otherwise.
func (h *IngestionHandler) Transcript(c *gin.Context) {
	ing, err := h.ingestionService.Transcript(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	switch ing.Status {
	case types.IngestionStatusCompleted:
		var segments []types.TranscriptSegment
		if len(ing.Segments) > 0 {
			if err := json.Unmarshal(ing.Segments, &segments); err != nil {
				h.log.Error("Stored segments are unparseable", "ingestion_id", ing.ID, "error", err)
			}
		}
		response.RespondOK(c, gin.H{
			"ingestion_id": ing.ID,
			"transcript":   ing.Transcript,
			"segments":     segments,
			"language":     ing.Language,
			"confidence":   ing.Confidence,
		})
	case types.IngestionStatusFailed:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"ingestion_id":  ing.ID,
			"status":        ing.Status,
			"error_message": ing.ErrorMessage,
		})
	default:
		response.RespondAccepted(c, gin.H{
			"ingestion_id": ing.ID,
			"status":       ing.Status,
		})
	}
}

// GET /api/ingestions
func (h *IngestionHandler) List(c *gin.Context) {
	list, err := h.ingestionService.List(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), 0)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ingestions": list})
}
