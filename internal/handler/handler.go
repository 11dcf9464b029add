package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/livingcool/kisanmind-sub000/internal/guide"
)

// Handler exposes the guidance session orchestrator over HTTP.
type Handler struct {
	orch          *guide.Orchestrator
	cleanupCancel context.CancelFunc
}

// NewHandler creates a new handler.
func NewHandler(orch *guide.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// Register wires the routes onto the router.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)

		api.POST("/session/start", h.StartSession)
		api.POST("/session/:id/analyze-frame", h.AnalyzeFrame)
		api.POST("/session/:id/capture", h.Capture)
		api.POST("/session/:id/skip", h.Skip)
		api.POST("/session/:id/next", h.Next)
		api.POST("/session/:id/complete", h.Complete)
		api.GET("/session/:id/status", h.Status)
	}

	r.GET("/ws", h.WebSocket)
}

// StartSession handles session start requests.
func (h *Handler) StartSession(c *gin.Context) {
	var req struct {
		FarmerID  string `json:"farmerId"`
		Language  string `json:"language"`
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
			"code":  guide.CodeMissingField,
		})
		return
	}

	result, err := h.orch.StartSession(c.Request.Context(), req.FarmerID, req.Language, req.SessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": gin.H{
			"sessionId":   result.Session.ID,
			"steps":       result.Steps,
			"currentStep": result.Instruction.Step,
			"language":    result.Session.Language,
		},
		"welcomeTTS":  result.Welcome,
		"instruction": result.Instruction,
	})
}

// AnalyzeFrame handles per-frame quality analysis requests.
func (h *Handler) AnalyzeFrame(c *gin.Context) {
	var req struct {
		FrameData string `json:"frameData" binding:"required"`
		StepID    string `json:"stepId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "frameData is required",
			"code":  guide.CodeMissingField,
		})
		return
	}

	result, err := h.orch.ProcessFrame(c.Request.Context(), c.Param("id"), req.FrameData, req.StepID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Capture handles capture acknowledgment requests.
func (h *Handler) Capture(c *gin.Context) {
	var req struct {
		StepID    string `json:"stepId" binding:"required"`
		ImageData string `json:"imageData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "stepId is required",
			"code":  guide.CodeMissingField,
		})
		return
	}

	result, err := h.orch.HandleCapture(c.Request.Context(), c.Param("id"), req.StepID, req.ImageData)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":    "capture_ack",
		"stepId":  result.StepID,
		"success": result.Success,
		"tts":     result.TTS,
	})
}

// Skip handles skip-step requests.
func (h *Handler) Skip(c *gin.Context) {
	var req struct {
		StepID string `json:"stepId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "stepId is required",
			"code":  guide.CodeMissingField,
		})
		return
	}

	transition, err := h.orch.HandleSkip(c.Request.Context(), c.Param("id"), req.StepID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, transitionBody(transition))
}

// Next handles advance-to-next-step requests.
func (h *Handler) Next(c *gin.Context) {
	transition, err := h.orch.AdvanceToNextStep(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, transitionBody(transition))
}

// Complete handles force-complete requests.
func (h *Handler) Complete(c *gin.Context) {
	result, err := h.orch.CompleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":                "session_complete",
		"capturedSteps":       result.CapturedSteps,
		"skippedSteps":        result.SkippedSteps,
		"allRequiredCaptured": result.AllRequiredCaptured,
		"instruction":         result.Instruction,
	})
}

// Status handles session snapshot requests. Read-only: it does not
// refresh the session's activity timestamp.
func (h *Handler) Status(c *gin.Context) {
	snapshot, ok := h.orch.GetSessionInfo(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "session not found",
			"code":  guide.CodeSessionNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// Health handles health check requests.
func (h *Handler) Health(c *gin.Context) {
	health := h.orch.GetHealth(c.Request.Context())

	status := "ok"
	if !health.TTS || !health.Quality {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"activeSessions": health.ActiveSessions,
		"dependencies": gin.H{
			"tts":     upDown(health.TTS),
			"quality": upDown(health.Quality),
		},
	})
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func transitionBody(t *guide.Transition) gin.H {
	if t.Complete != nil {
		return gin.H{
			"type":                "session_complete",
			"capturedSteps":       t.Complete.CapturedSteps,
			"skippedSteps":        t.Complete.SkippedSteps,
			"allRequiredCaptured": t.Complete.AllRequiredCaptured,
			"instruction":         t.Complete.Instruction,
		}
	}
	return gin.H{
		"type":        "step_change",
		"step":        t.StepChange.Step,
		"instruction": t.StepChange.Instruction,
		"progress":    t.StepChange.Progress,
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	code := guide.ErrorCode(err)

	var status int
	switch {
	case errors.Is(err, guide.ErrSessionNotFound), errors.Is(err, guide.ErrStepNotFound):
		status = http.StatusNotFound
	case errors.Is(err, guide.ErrMissingFarmerID):
		status = http.StatusBadRequest
	case errors.Is(err, guide.ErrSessionCompleted):
		status = http.StatusConflict
	default:
		log.Printf("Unexpected error handling %s: %v", c.FullPath(), err)
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// StartSessionCleanup starts the background sweep of expired sessions.
func (h *Handler) StartSessionCleanup(interval time.Duration) {
	log.Printf("Starting session cleanup task (interval: %v)", interval)

	ctx, cancel := context.WithCancel(context.Background())
	h.cleanupCancel = cancel
	go h.orch.RunCleanupLoop(ctx, interval)
}

// StopSessionCleanup stops the background cleanup task.
func (h *Handler) StopSessionCleanup() {
	if h.cleanupCancel != nil {
		h.cleanupCancel()
		log.Println("Session cleanup task stopped")
	}
}
