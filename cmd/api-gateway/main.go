package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/campus-core-api/api/swagger"
	"github.com/campuskit/campus-core-api/internal/handler"
	"github.com/campuskit/campus-core-api/internal/middleware"
	"github.com/campuskit/campus-core-api/internal/repository"
	"github.com/campuskit/campus-core-api/internal/service"
	"github.com/campuskit/campus-core-api/pkg/cache"
	"github.com/campuskit/campus-core-api/pkg/config"
	"github.com/campuskit/campus-core-api/pkg/database"
	"github.com/campuskit/campus-core-api/pkg/logger"
	corsmiddleware "github.com/campuskit/campus-core-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/campus-core-api/pkg/middleware/requestid"
	"github.com/campuskit/campus-core-api/pkg/storage"
)

// @title Campus Core API
// @version 1.0.0
// @description Course section booking, enrollment lifecycle and grading
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// The cache is an optimization only; start degraded when Redis is down.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	board := service.NewScheduleBoard(sectionRepo, assessmentRepo, logr)
	metricsService := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	}, logr)
	sectionService := service.NewSectionService(sectionRepo, enrollmentRepo, cacheRepo, board, metricsService, logr, service.BookingConfig{
		OccurrenceCacheTTL: cfg.Booking.OccurrenceCacheTTL,
		MaxRangeDays:       cfg.Booking.MaxRangeDays,
	})
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, sectionRepo, assessmentRepo, gradeRepo, cacheRepo, board, metricsService, logr)
	gradeService := service.NewGradeService(assessmentRepo, gradeRepo, enrollmentRepo, sectionRepo, cacheRepo, board, metricsService, logr, service.GradingConfig{
		DefaultPassingGrade: cfg.Grading.DefaultPassingGrade,
		ReportCacheTTL:      cfg.Grading.ReportCacheTTL,
	})
	exportStore, err := storage.NewExportStore(cfg.Reports.ExportDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export store", "error", err)
	}
	downloadSigner := storage.NewDownloadSigner(cfg.Reports.SignSecret, cfg.Reports.DownloadTTL)
	reportService := service.NewReportService(gradeService, sectionService, exportStore, downloadSigner, logr, service.ReportsConfig{
		Enabled:     cfg.Reports.Enabled,
		DownloadTTL: cfg.Reports.DownloadTTL,
	})
	userService := service.NewUserService(userRepo, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	handler.RegisterRoutes(r, cfg.APIPrefix, authService, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Users:       handler.NewUserHandler(userService),
		Sections:    handler.NewSectionHandler(sectionService),
		Enrollments: handler.NewEnrollmentHandler(enrollmentService),
		Grades:      handler.NewGradeHandler(gradeService),
		Reports:     handler.NewReportHandler(reportService),
		Metrics:     handler.NewMetricsHandler(metricsService),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
