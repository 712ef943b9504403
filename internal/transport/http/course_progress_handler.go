package handlers

import (
	"context"
	"net/http"

	"learnplatform/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type enrollmentReader interface {
	GetByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error)
}

type CourseProgressHandler struct {
	enrollments enrollmentReader
}

func NewCourseProgressHandler(enrollments enrollmentReader) *CourseProgressHandler {
	return &CourseProgressHandler{enrollments: enrollments}
}

// GET /api/v1/courses/:courseId/progress
func (h *CourseProgressHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}

	enrollment, err := h.enrollments.GetByUserAndCourse(c.Request.Context(), userID, courseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if enrollment == nil {
		// Нет записи — нулевой прогресс, это не ошибка.
		c.JSON(http.StatusOK, gin.H{
			"completion_percentage": 0,
			"status":                domain.EnrollmentStatusActive,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completion_percentage": enrollment.CompletionPercentage,
		"status":                enrollment.Status,
	})
}
