package repository

import (
	"context"
	"errors"
	"time"

	"learnplatform/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// SetCompletionPercentage overwrites the derived percentage for the pair.
// The write is idempotent: recomputing with an unchanged progress set lands
// on the same value.
func (r *EnrollmentRepository) SetCompletionPercentage(ctx context.Context, userID, courseID uuid.UUID, value float64) error {
	status := domain.EnrollmentStatusActive
	if value >= 100 {
		status = domain.EnrollmentStatusCompleted
		value = 100
	}

	enrollment := &domain.Enrollment{UserID: userID, CourseID: courseID}

	// FirstOrCreate чтобы не дублировать запись при гонке
	err := r.db.WithContext(ctx).
		Where(domain.Enrollment{UserID: userID, CourseID: courseID}).
		Attrs(domain.Enrollment{
			Status:         domain.EnrollmentStatusActive,
			LastAccessedAt: time.Now(),
		}).
		FirstOrCreate(enrollment).Error
	if err != nil {
		return translateStoreErr(err)
	}

	err = r.db.WithContext(ctx).Model(&domain.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Updates(map[string]interface{}{
			"completion_percentage": value,
			"status":                status,
			"last_accessed_at":      time.Now(),
		}).Error
	return translateStoreErr(err)
}

func (r *EnrollmentRepository) GetByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return &enrollment, nil
}
