package handlers

import (
	"net/http"
	"strings"
	"time"

	"learnplatform/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterOptions struct {
	AllowedOrigins     string // список через запятую
	JWTAccessSecret    string
	HeartbeatRateLimit int // запросов в минуту, 0 = без лимита
}

func NewRouter(progressHandler *ProgressHandler, courseHandler *CourseProgressHandler, limiter *middleware.RateLimiter, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	if opts.AllowedOrigins != "" {
		config.AllowOrigins = strings.Split(opts.AllowedOrigins, ",")
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowCredentials = !config.AllowAllOrigins
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(opts.JWTAccessSecret))
	{
		progress := api.Group("/progress")
		{
			progress.POST("/heartbeat",
				limiter.Limit("heartbeat", opts.HeartbeatRateLimit, 1*time.Minute),
				progressHandler.Heartbeat)
			progress.GET("/lessons/:lessonId", progressHandler.GetProgress)
			progress.POST("/lessons/:lessonId/complete", progressHandler.MarkComplete)
		}
		courses := api.Group("/courses")
		{
			courses.GET("/:courseId/progress", courseHandler.Get)
			courses.POST("/:courseId/progress/recompute", progressHandler.RecomputeCourseCompletion)
		}
	}

	return r
}
