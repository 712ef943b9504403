package repository

import (
	"context"
	"errors"
	"fmt"

	"learnplatform/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Get(ctx context.Context, userID, lessonID uuid.UUID) (*domain.LessonProgress, error) {
	var row domain.LessonProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return &row, nil
}

// Mutate runs fn on the current row for (userID, lessonID) — nil if the pair
// has no row yet — and persists the result, all inside one transaction that
// holds a row lock. Concurrent calls for the same key are serialized by the
// database, so no increment can be lost to a stale read.
func (r *ProgressRepository) Mutate(ctx context.Context, userID, lessonID uuid.UUID, fn func(current *domain.LessonProgress) (*domain.LessonProgress, error)) (*domain.LessonProgress, error) {
	var result *domain.LessonProgress

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.LessonProgress
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND lesson_id = ?", userID, lessonID).
			First(&existing).Error

		var current *domain.LessonProgress
		switch {
		case err == nil:
			current = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			current = nil
		default:
			return err
		}

		updated, err := fn(current)
		if err != nil {
			return err
		}

		if current == nil {
			// Две первые heartbeat'ы могут вставлять одновременно —
			// проигравший упрется в первичный ключ и уйдет на retry.
			if err := tx.Create(updated).Error; err != nil {
				return err
			}
			result = updated
			return nil
		}

		if err := tx.Model(&domain.LessonProgress{}).
			Where("user_id = ? AND lesson_id = ?", userID, lessonID).
			Updates(map[string]interface{}{
				"watched_sec":   updated.WatchedSec,
				"last_position": updated.LastPosition,
				"completed":     updated.Completed,
				"completed_at":  updated.CompletedAt,
			}).Error; err != nil {
			return err
		}
		result = updated
		return nil
	})

	if err != nil {
		return nil, translateStoreErr(err)
	}
	return result, nil
}

func (r *ProgressRepository) CountCompleted(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) (int64, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.LessonProgress{}).
		Where("user_id = ? AND lesson_id IN ? AND completed = ?", userID, lessonIDs, true).
		Count(&count).Error
	if err != nil {
		return 0, translateStoreErr(err)
	}
	return count, nil
}

// translateStoreErr maps retryable database failures onto the shared
// sentinel so callers can answer with a retryable status. Domain sentinels
// raised inside Mutate callbacks pass through untouched.
func translateStoreErr(err error) error {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrLessonNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gorm.ErrInvalidTransaction) {
		return fmt.Errorf("%w: %v", domain.ErrStoreConflict, err)
	}
	return err
}
