package domain

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string    `gorm:"index"`
	Description string
	Category    string `gorm:"index"`
	CoverURL    string

	Lessons []Lesson `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE;"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lesson types without a playback timeline (quiz, assignment, reading) carry
// no duration and are completed manually.
const (
	LessonTypeVideo      = "video"
	LessonTypeQuiz       = "quiz"
	LessonTypeAssignment = "assignment"
	LessonTypeReading    = "reading"
)

type Lesson struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CourseID    uuid.UUID `gorm:"type:uuid;index"`
	Title       string
	Type        string `gorm:"default:'video'"`
	Order       int    // для сортировки (1, 2, 3...)
	DurationSec *float64
	MediaID     *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
}

// LessonRef is what the directory hands back to the engine: the owning
// course plus the authoritative duration, when one is known.
type LessonRef struct {
	LessonID    uuid.UUID
	CourseID    uuid.UUID
	DurationSec *float64
	MediaID     *uuid.UUID
}
