package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnplatform/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const lessonCacheTTL = 10 * time.Minute

// LessonRepository is the read side of the course catalog. The engine never
// writes here; lessons and courses are managed by the catalog service.
type LessonRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewLessonRepository(db *gorm.DB, rdb *redis.Client) *LessonRepository {
	return &LessonRepository{db: db, rdb: rdb}
}

func (r *LessonRepository) ResolveLesson(ctx context.Context, lessonID uuid.UUID) (*domain.LessonRef, error) {
	key := fmt.Sprintf("lesson:ref:%s", lessonID)

	// 1. Читаем из кеша
	if r.rdb != nil {
		if val, err := r.rdb.Get(ctx, key).Result(); err == nil {
			var ref domain.LessonRef
			if json.Unmarshal([]byte(val), &ref) == nil {
				return &ref, nil
			}
		}
	}

	// 2. Читаем из БД
	var lesson domain.Lesson
	err := r.db.WithContext(ctx).
		Where("id = ?", lessonID).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrLessonNotFound
	}
	if err != nil {
		return nil, translateStoreErr(err)
	}

	ref := &domain.LessonRef{
		LessonID:    lesson.ID,
		CourseID:    lesson.CourseID,
		DurationSec: lesson.DurationSec,
		MediaID:     lesson.MediaID,
	}

	// 3. Пишем в кеш (уроки меняются редко)
	if r.rdb != nil {
		if data, err := json.Marshal(ref); err == nil {
			r.rdb.Set(ctx, key, data, lessonCacheTTL)
		}
	}

	return ref, nil
}

func (r *LessonRepository) ListLessonIDsForCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Lesson{}).
		Where("course_id = ?", courseID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return ids, nil
}
