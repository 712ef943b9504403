package main

import (
	"context"
	"fmt"
	"log"

	"learnplatform/config"
	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/telemetry"
	"learnplatform/internal/middleware"
	"learnplatform/internal/pkg/logger"
	handlers "learnplatform/internal/transport/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. Загрузка конфига
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.AppMode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer appLog.Sync()

	// 2. Подключение к БД
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		appLog.Fatal("Failed to connect to DB", "error", err)
	}

	// 3. Миграции
	appLog.Info("Running migrations...")
	if err := db.AutoMigrate(
		&domain.Course{},
		&domain.Lesson{},
		&domain.LessonProgress{},
		&domain.Enrollment{},
	); err != nil {
		appLog.Fatal("Failed to migrate DB", "error", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLog.Fatal("Failed to connect to Redis", "error", err)
	}

	// 4. Инициализация слоев
	progressRepo := repository.NewProgressRepository(db)
	lessonRepo := repository.NewLessonRepository(db, rdb)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sink := telemetry.NewRedisSink(rdb, appLog)

	progressUC := usecase.NewProgressUseCase(
		progressRepo,
		lessonRepo,
		enrollmentRepo,
		sink,
		appLog,
		cfg.CompletionThreshold,
	)

	progressHandler := handlers.NewProgressHandler(progressUC, appLog)
	courseHandler := handlers.NewCourseProgressHandler(enrollmentRepo)
	limiter := middleware.NewRateLimiter(rdb)

	router := handlers.NewRouter(progressHandler, courseHandler, limiter, handlers.RouterOptions{
		AllowedOrigins:     cfg.AllowedOrigins,
		JWTAccessSecret:    cfg.JWTAccessSecret,
		HeartbeatRateLimit: cfg.HeartbeatRateLimit,
	})

	appLog.Info("Progress service running", "port", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		appLog.Fatal("Failed to serve", "error", err)
	}
}
