package usecase

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/pkg/logger"

	"github.com/google/uuid"
)

// DefaultCompletionThreshold is the watch percentage at which a lesson flips
// to completed. It is the single place the 90 lives; deployments tune it via
// COMPLETION_THRESHOLD.
const DefaultCompletionThreshold = 90.0

// A reported duration wildly above the catalog's is a broken player, not
// buffering drift.
const maxDurationDriftFactor = 2.0

type ProgressStore interface {
	Get(ctx context.Context, userID, lessonID uuid.UUID) (*domain.LessonProgress, error)
	Mutate(ctx context.Context, userID, lessonID uuid.UUID, fn func(current *domain.LessonProgress) (*domain.LessonProgress, error)) (*domain.LessonProgress, error)
	CountCompleted(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) (int64, error)
}

type LessonDirectory interface {
	ResolveLesson(ctx context.Context, lessonID uuid.UUID) (*domain.LessonRef, error)
	ListLessonIDsForCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error)
}

type EnrollmentStore interface {
	SetCompletionPercentage(ctx context.Context, userID, courseID uuid.UUID, value float64) error
}

type TelemetrySink interface {
	RecordPlaybackSession(ctx context.Context, event domain.PlaybackSessionEvent)
}

type HeartbeatInput struct {
	UserID    uuid.UUID
	LessonID  uuid.UUID
	Position  float64
	Duration  float64
	SessionID string
}

type ProgressView struct {
	WatchedSec           float64    `json:"watched_sec"`
	LastPosition         float64    `json:"last_position"`
	CompletionPercentage float64    `json:"completion_percentage"`
	Completed            bool       `json:"completed"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// ProgressUseCase is the progress tracking and completion engine. It owns no
// state of its own; all mutation goes through the store's per-key atomic
// Mutate, so any number of instances can serve the same learner.
type ProgressUseCase struct {
	store       ProgressStore
	lessons     LessonDirectory
	enrollments EnrollmentStore
	sink        TelemetrySink
	log         *logger.Logger
	threshold   float64
}

func NewProgressUseCase(
	store ProgressStore,
	lessons LessonDirectory,
	enrollments EnrollmentStore,
	sink TelemetrySink,
	baseLog *logger.Logger,
	threshold float64,
) *ProgressUseCase {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultCompletionThreshold
	}
	return &ProgressUseCase{
		store:       store,
		lessons:     lessons,
		enrollments: enrollments,
		sink:        sink,
		log:         baseLog.With("component", "progress"),
		threshold:   threshold,
	}
}

// ProcessHeartbeat folds one player heartbeat into the stored watch state.
// Only forward motion earns watched time: rewinds and duplicate deliveries
// contribute a zero increment, which is what makes retries safe.
func (uc *ProgressUseCase) ProcessHeartbeat(ctx context.Context, in HeartbeatInput) (*ProgressView, error) {
	if in.Position < 0 || in.Duration <= 0 {
		return nil, fmt.Errorf("%w: position=%.2f duration=%.2f", domain.ErrInvalidInput, in.Position, in.Duration)
	}

	ref, err := uc.lessons.ResolveLesson(ctx, in.LessonID)
	if err != nil {
		return nil, err
	}
	if ref.DurationSec != nil && *ref.DurationSec > 0 && in.Duration > *ref.DurationSec*maxDurationDriftFactor {
		return nil, fmt.Errorf("%w: reported duration %.2f, catalog has %.2f", domain.ErrInvalidInput, in.Duration, *ref.DurationSec)
	}

	var flipped bool
	row, err := uc.store.Mutate(ctx, in.UserID, in.LessonID, func(current *domain.LessonProgress) (*domain.LessonProgress, error) {
		updated := uc.applyHeartbeat(current, ref, in)
		flipped = updated.Completed && (current == nil || !current.Completed)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		uc.recomputeAfterCompletion(ctx, in.UserID, ref.CourseID)
	}

	view := &ProgressView{
		WatchedSec:           row.WatchedSec,
		LastPosition:         row.LastPosition,
		CompletionPercentage: watchPercentage(row.WatchedSec, in.Duration),
		Completed:            row.Completed,
		CompletedAt:          row.CompletedAt,
	}

	go uc.sink.RecordPlaybackSession(ctx, domain.PlaybackSessionEvent{
		UserID:         in.UserID,
		LessonID:       in.LessonID,
		CourseID:       ref.CourseID,
		SessionID:      in.SessionID,
		WatchTime:      row.WatchedSec,
		CompletionRate: view.CompletionPercentage,
	})

	return view, nil
}

// applyHeartbeat is the pure heart of the engine: old row (nil on first
// contact) plus one heartbeat in, new row out.
func (uc *ProgressUseCase) applyHeartbeat(current *domain.LessonProgress, ref *domain.LessonRef, in HeartbeatInput) *domain.LessonProgress {
	var watched, lastPos float64
	var wasCompleted bool
	var completedAt *time.Time

	if current != nil {
		watched = current.WatchedSec
		lastPos = current.LastPosition
		wasCompleted = current.Completed
		completedAt = current.CompletedAt
	}

	var increment float64
	if current == nil {
		// Первый heartbeat: засчитываем просмотр от начала урока.
		increment = min(in.Position, in.Duration)
	} else if in.Position > lastPos {
		// Кап dur-watched не дает уехать за длительность, даже если клиент
		// прислал чуть другую длительность, чем в прошлый раз.
		increment = min(in.Position-lastPos, in.Duration-watched)
	}
	if increment < 0 {
		increment = 0
	}

	newWatched := watched + increment
	if newWatched > in.Duration {
		newWatched = in.Duration
	}
	if newWatched < 0 {
		newWatched = 0
	}

	completed := wasCompleted || watchPercentage(newWatched, in.Duration) >= uc.threshold
	if completed && !wasCompleted {
		now := time.Now()
		completedAt = &now
	}

	return &domain.LessonProgress{
		UserID:       in.UserID,
		LessonID:     in.LessonID,
		CourseID:     ref.CourseID,
		WatchedSec:   newWatched,
		LastPosition: in.Position,
		Completed:    completed,
		CompletedAt:  completedAt,
	}
}

// GetProgress is a pure read. A lesson the user never touched yields the
// zero state, not an error.
func (uc *ProgressUseCase) GetProgress(ctx context.Context, userID, lessonID uuid.UUID) (*ProgressView, error) {
	row, err := uc.store.Get(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &ProgressView{}, nil
	}

	pct := 0.0
	if ref, err := uc.lessons.ResolveLesson(ctx, lessonID); err == nil && ref.DurationSec != nil && *ref.DurationSec > 0 {
		pct = watchPercentage(row.WatchedSec, *ref.DurationSec)
	} else if row.Completed {
		pct = 100
	}

	return &ProgressView{
		WatchedSec:           row.WatchedSec,
		LastPosition:         row.LastPosition,
		CompletionPercentage: pct,
		Completed:            row.Completed,
		CompletedAt:          row.CompletedAt,
	}, nil
}

// MarkComplete completes a lesson without a playback timeline (quiz,
// assignment, reading). Idempotent: a second call changes nothing.
func (uc *ProgressUseCase) MarkComplete(ctx context.Context, userID, lessonID uuid.UUID) (*ProgressView, error) {
	ref, err := uc.lessons.ResolveLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	var flipped bool
	row, err := uc.store.Mutate(ctx, userID, lessonID, func(current *domain.LessonProgress) (*domain.LessonProgress, error) {
		if current != nil && current.Completed {
			return current, nil
		}
		flipped = true
		now := time.Now()
		updated := &domain.LessonProgress{
			UserID:      userID,
			LessonID:    lessonID,
			CourseID:    ref.CourseID,
			Completed:   true,
			CompletedAt: &now,
		}
		if current != nil {
			updated.WatchedSec = current.WatchedSec
			updated.LastPosition = current.LastPosition
		}
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	if flipped {
		uc.recomputeAfterCompletion(ctx, userID, ref.CourseID)
	}

	pct := 100.0
	if ref.DurationSec != nil && *ref.DurationSec > 0 {
		pct = watchPercentage(row.WatchedSec, *ref.DurationSec)
	}

	return &ProgressView{
		WatchedSec:           row.WatchedSec,
		LastPosition:         row.LastPosition,
		CompletionPercentage: pct,
		Completed:            row.Completed,
		CompletedAt:          row.CompletedAt,
	}, nil
}

// RecomputeCourseCompletion rebuilds the derived course percentage from the
// completed lesson set and writes it to the enrollment row. Idempotent and
// safe to re-run at any time; the progress rows stay the source of truth.
func (uc *ProgressUseCase) RecomputeCourseCompletion(ctx context.Context, userID, courseID uuid.UUID) (float64, error) {
	lessonIDs, err := uc.lessons.ListLessonIDsForCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if len(lessonIDs) == 0 {
		return 0, nil
	}

	completedCount, err := uc.store.CountCompleted(ctx, userID, lessonIDs)
	if err != nil {
		return 0, err
	}

	pct := 100 * float64(completedCount) / float64(len(lessonIDs))
	if err := uc.enrollments.SetCompletionPercentage(ctx, userID, courseID, pct); err != nil {
		return 0, err
	}
	return pct, nil
}

// recomputeAfterCompletion refreshes the course aggregate after a lesson
// flipped to completed. The aggregate is derived and re-runnable, so a
// failure here must not fail the write that triggered it.
func (uc *ProgressUseCase) recomputeAfterCompletion(ctx context.Context, userID, courseID uuid.UUID) {
	if _, err := uc.RecomputeCourseCompletion(ctx, userID, courseID); err != nil {
		uc.log.Warn("course completion recompute failed",
			"user_id", userID,
			"course_id", courseID,
			"error", err,
		)
	}
}

func watchPercentage(watched, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	pct := 100 * watched / duration
	if pct > 100 {
		pct = 100
	}
	return pct
}
