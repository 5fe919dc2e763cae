package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/requestdata"
	"github.com/yungbote/voicenotes-backend/internal/response"
	"github.com/yungbote/voicenotes-backend/internal/services"
)

type StickyHandler struct {
	log           *logger.Logger
	stickyService services.StickyService
}

func NewStickyHandler(log *logger.Logger, ssvc services.StickyService) *StickyHandler {
	return &StickyHandler{
		log:           log.With("handler", "StickyHandler"),
		stickyService: ssvc,
	}
}

// POST /api/stickies/generate
func (h *StickyHandler) Generate(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	domain, created, err := h.stickyService.Generate(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), body.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"domain":  domain,
		"created": created,
	})
}

// GET /api/stickies?domain=...
func (h *StickyHandler) List(c *gin.Context) {
	stickies, err := h.stickyService.List(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), c.Query("domain"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stickies": stickies})
}

// GET /api/stickies/domains
func (h *StickyHandler) Domains(c *gin.Context) {
	domains, err := h.stickyService.Domains(c.Request.Context(), requestdata.OwnerID(c.Request.Context()))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"domains": domains})
}

// POST /api/stickies/domains/combine
func (h *StickyHandler) CombineDomains(c *gin.Context) {
	var body struct {
		From []string `json:"from"`
		To   string   `json:"to"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	moved, err := h.stickyService.CombineDomains(c.Request.Context(), requestdata.OwnerID(c.Request.Context()), body.From, body.To)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"domain":         body.To,
		"stickies_moved": moved,
	})
}
