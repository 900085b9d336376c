package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/learnhub-dev/learnhub-api/api/swagger"
	"github.com/learnhub-dev/learnhub-api/internal/handler"
	"github.com/learnhub-dev/learnhub-api/internal/middleware"
	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/repository"
	"github.com/learnhub-dev/learnhub-api/internal/service"
	"github.com/learnhub-dev/learnhub-api/pkg/cache"
	"github.com/learnhub-dev/learnhub-api/pkg/config"
	"github.com/learnhub-dev/learnhub-api/pkg/database"
	"github.com/learnhub-dev/learnhub-api/pkg/logger"
	corsmiddleware "github.com/learnhub-dev/learnhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/learnhub-dev/learnhub-api/pkg/middleware/requestid"
)

// @title LearnHub API
// @version 1.0.0
// @description Learner progress and assessment tracking for the LearnHub course platform
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats caching disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.Enabled)
		defer cacheRepo.Close() //nolint:errcheck
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	quizResultRepo := repository.NewQuizResultRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, cacheSvc, metricsSvc, validate, logr)
	quizSvc := service.NewQuizService(quizRepo, quizResultRepo, courseRepo, metricsSvc, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, courseRepo, validate, logr)
	statsSvc := service.NewStatsService(enrollmentRepo, userRepo, cacheSvc, cfg.Certificates.IssuerName, cfg.Certificates.Enabled, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, statsSvc)
	quizHandler := handler.NewQuizHandler(quizSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authn := middleware.JWT(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api.POST("/auth/sync", authHandler.Sync)
	api.GET("/auth/me", authn, authHandler.Me)
	api.GET("/auth/profile/:uid", authn, authHandler.Profile)

	api.GET("/courses", courseHandler.List)
	api.GET("/courses/:id", courseHandler.Get)
	api.POST("/courses", authn, adminOnly, courseHandler.Create)

	enrollments := api.Group("/enrollments", authn)
	enrollments.POST("", enrollmentHandler.Enroll)
	enrollments.GET("/my-courses", enrollmentHandler.MyCourses)
	enrollments.GET("/analytics", adminOnly, enrollmentHandler.Analytics)
	enrollments.GET("/by-course/:courseId", adminOnly, enrollmentHandler.ByCourse)
	enrollments.GET("/by-course/:courseId/export", adminOnly, enrollmentHandler.ExportByCourse)
	enrollments.GET("/:id", enrollmentHandler.Get)
	enrollments.DELETE("/:id", enrollmentHandler.Drop)
	enrollments.POST("/:id/complete-lesson", enrollmentHandler.CompleteLesson)
	enrollments.POST("/:id/access", enrollmentHandler.TouchAccess)
	enrollments.GET("/:id/certificate", enrollmentHandler.Certificate)

	quizzes := api.Group("/quizzes", authn)
	quizzes.POST("", adminOnly, quizHandler.Create)
	quizzes.GET("/my-results", quizHandler.MyResults)
	quizzes.GET("/by-course/:courseId", quizHandler.ListByCourse)
	quizzes.GET("/:id", quizHandler.Get)
	quizzes.PUT("/:id", adminOnly, quizHandler.Update)
	quizzes.DELETE("/:id", adminOnly, quizHandler.Delete)
	quizzes.POST("/:id/submit", quizHandler.Submit)

	assignments := api.Group("/assignments", authn)
	assignments.POST("", assignmentHandler.Submit)
	assignments.GET("/my", assignmentHandler.My)
	assignments.GET("/admin/all", adminOnly, assignmentHandler.AdminList)

	if cfg.Stats.Enabled {
		api.GET("/stats/overview", authn, adminOnly, statsHandler.Overview)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
