package domain

import (
	"time"

	"github.com/google/uuid"
)

// LessonProgress is the per-(user, lesson) watch state. WatchedSec only ever
// grows and never exceeds the lesson duration; Completed never goes back to
// false once set; CompletedAt is written once, on the call that set Completed.
// LastPosition follows the player and may move backward on rewinds.
type LessonProgress struct {
	UserID       uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	LessonID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"lesson_id"`
	CourseID     uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	WatchedSec   float64   `gorm:"not null;default:0" json:"watched_sec"`
	LastPosition float64   `gorm:"not null;default:0" json:"last_position"`
	Completed    bool      `gorm:"not null;default:false" json:"completed"`

	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

// PlaybackSessionEvent is the best-effort analytics payload emitted after a
// heartbeat is persisted.
type PlaybackSessionEvent struct {
	UserID         uuid.UUID `json:"user_id"`
	LessonID       uuid.UUID `json:"lesson_id"`
	CourseID       uuid.UUID `json:"course_id"`
	SessionID      string    `json:"session_id,omitempty"`
	WatchTime      float64   `json:"watch_time"`
	CompletionRate float64   `json:"completion_rate"`
}
