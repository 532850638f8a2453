package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	types "github.com/yungbote/neurobridge-coursegen/internal/domain"
	"github.com/yungbote/neurobridge-coursegen/internal/http/response"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime"
	"github.com/yungbote/neurobridge-coursegen/internal/services"
)

type GenerationHandler struct {
	log  *logger.Logger
	gens services.GenerationService
	hub  *realtime.SSEHub
}

func NewGenerationHandler(log *logger.Logger, gens services.GenerationService, hub *realtime.SSEHub) *GenerationHandler {
	return &GenerationHandler{
		log:  log.With("handler", "GenerationHandler"),
		gens: gens,
		hub:  hub,
	}
}

type createGenerationRequest struct {
	Topic               string            `json:"topic" binding:"required"`
	TargetDifficulty    string            `json:"targetDifficulty"`
	AssessmentResponses map[string]string `json:"assessmentResponses"`
}

// POST /api/course-generations
func (h *GenerationHandler) Create(c *gin.Context) {
	var req createGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	difficulty := course.ParseDifficulty(req.TargetDifficulty)
	if strings.TrimSpace(req.TargetDifficulty) != "" && difficulty == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_difficulty",
			fmt.Errorf("targetDifficulty must be one of %v", course.Difficulties))
		return
	}

	run, err := h.gens.Start(c.Request.Context(), course.GenerationInput{
		Topic:               req.Topic,
		TargetDifficulty:    difficulty,
		AssessmentResponses: req.AssessmentResponses,
	})
	if err != nil {
		response.RespondAPIError(c, mapServiceError(err))
		return
	}
	response.RespondAccepted(c, gin.H{"run": run})
}

// GET /api/course-generations
func (h *GenerationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.gens.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		response.RespondAPIError(c, mapServiceError(err))
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/course-generations/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := h.gens.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, mapRunError(err, id.String()))
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// GET /api/course-generations/:id/checkpoints
func (h *GenerationHandler) Checkpoints(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	cps, err := h.gens.Checkpoints(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, mapRunError(err, id.String()))
		return
	}
	response.RespondOK(c, gin.H{"checkpoints": cps})
}

// POST /api/course-generations/:id/cancel
func (h *GenerationHandler) Cancel(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := h.gens.Cancel(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, mapRunError(err, id.String()))
		return
	}
	response.RespondAccepted(c, gin.H{"run": run})
}

// GET /api/course-generations/:id/events
//
// Streams the run's SSE events. A finished run gets one terminal event and the stream closes.
func (h *GenerationHandler) Events(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	run, err := h.gens.Get(ctx, id)
	if err != nil {
		response.RespondAPIError(c, mapRunError(err, id.String()))
		return
	}

	client := h.hub.NewSSEClient()
	defer h.hub.CloseClient(client)
	client.Outbound <- snapshotMessage(run)
	if !run.Terminal() {
		h.hub.AddChannel(client, id.String())
		// Re-read after subscribing so a run finishing in between is not missed.
		if latest, err := h.gens.Get(ctx, id); err == nil && latest.Terminal() {
			select {
			case client.Outbound <- snapshotMessage(latest):
			default:
			}
		}
	}

	h.log.Debug("SSE stream open", "run_id", id, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

func snapshotMessage(run *types.GenerationRun) realtime.SSEMessage {
	data := map[string]any{
		"run_id":   run.ID,
		"status":   run.Status,
		"stage":    run.Stage,
		"progress": run.Progress,
		"message":  run.Message,
	}
	ev := realtime.SSEEventGenerationProgress
	switch run.Status {
	case types.GenerationStatusSucceeded:
		ev = realtime.SSEEventGenerationDone
	case types.GenerationStatusFailed:
		ev = realtime.SSEEventGenerationFailed
		data["node"] = run.FailedNode
		data["error"] = run.Error
	case types.GenerationStatusCanceled:
		ev = realtime.SSEEventGenerationCanceled
	}
	return realtime.SSEMessage{Channel: run.ID.String(), Event: ev, Data: data}
}

func runID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_generation_id", err)
		return uuid.Nil, false
	}
	return id, true
}
