package handlers

import (
	"errors"
	"net/http"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
	"learnplatform/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProgressHandler struct {
	progress *usecase.ProgressUseCase
	log      *logger.Logger
}

func NewProgressHandler(progress *usecase.ProgressUseCase, baseLog *logger.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, log: baseLog.With("component", "http")}
}

type heartbeatRequest struct {
	LessonID  string  `json:"lesson_id" binding:"required"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	SessionID string  `json:"session_id"`
}

// POST /api/v1/progress/heartbeat
func (h *ProgressHandler) Heartbeat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lessonID, err := uuid.Parse(req.LessonID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson_id"})
		return
	}

	view, err := h.progress.ProcessHeartbeat(c.Request.Context(), usecase.HeartbeatInput{
		UserID:    userID,
		LessonID:  lessonID,
		Position:  req.Position,
		Duration:  req.Duration,
		SessionID: req.SessionID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /api/v1/progress/lessons/:lessonId
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	lessonID, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson id"})
		return
	}

	view, err := h.progress.GetProgress(c.Request.Context(), userID, lessonID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/v1/progress/lessons/:lessonId/complete
func (h *ProgressHandler) MarkComplete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	lessonID, err := uuid.Parse(c.Param("lessonId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson id"})
		return
	}

	view, err := h.progress.MarkComplete(c.Request.Context(), userID, lessonID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/v1/courses/:courseId/progress/recompute
func (h *ProgressHandler) RecomputeCourseCompletion(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}

	pct, err := h.progress.RecomputeCourseCompletion(c.Request.Context(), userID, courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completion_percentage": pct})
}

func (h *ProgressHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrLessonNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Lesson not found"})
	case errors.Is(err, domain.ErrStoreConflict):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temporary storage error, retry"})
	default:
		h.log.Error("unhandled progress error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.GetString("userId")) // из AuthMiddleware
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user id in token"})
		return uuid.Nil, false
	}
	return userID, true
}
