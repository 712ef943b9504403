package telemetry

import (
	"context"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	playbackStream    = "telemetry:playback"
	playbackStreamCap = 100000
	publishTimeout    = 2 * time.Second
)

// RedisSink publishes playback analytics to a capped redis stream. It is
// strictly best-effort: every failure is logged and swallowed, a progress
// write must never depend on it.
type RedisSink struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewRedisSink(rdb *redis.Client, baseLog *logger.Logger) *RedisSink {
	return &RedisSink{rdb: rdb, log: baseLog.With("component", "telemetry")}
}

func (s *RedisSink) RecordPlaybackSession(ctx context.Context, event domain.PlaybackSessionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: playbackStream,
		MaxLen: playbackStreamCap,
		Approx: true,
		Values: map[string]interface{}{
			"user_id":         event.UserID.String(),
			"lesson_id":       event.LessonID.String(),
			"course_id":       event.CourseID.String(),
			"session_id":      event.SessionID,
			"watch_time":      event.WatchTime,
			"completion_rate": event.CompletionRate,
		},
	}).Err()
	if err != nil {
		s.log.Warn("playback event dropped",
			"lesson_id", event.LessonID,
			"error", err,
		)
	}
}
