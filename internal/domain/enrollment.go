package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
)

// Enrollment carries the derived course completion percentage. The row is the
// write target of the completion aggregator; the lesson_progress rows stay
// the source of truth.
type Enrollment struct {
	UserID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompletionPercentage float64   `gorm:"not null;default:0"`
	Status               string    `gorm:"default:'active'"`
	LastAccessedAt       time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Enrollment) TableName() string { return "enrollments" }
