package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/handler"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
	"github.com/noah-isme/academic-records-api/pkg/lock"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 1.0.0
// @description Terms, enrollments, grades and rankings
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logr.Fatal("failed to migrate", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	var locker lock.Locker = lock.NewLocalLocker(cfg.Ranking.LockWait)
	if cfg.Ranking.LockBackend == config.LockBackendRedis {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		locker = lock.NewRedisLocker(redisClient, cfg.Ranking.LockTTL, cfg.Ranking.LockWait)
	}

	metrics := service.NewMetricsService()

	termRepo := repository.NewTermRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	termSvc := service.NewTermService(termRepo, nil, metrics, logr)
	codes := service.NewCodeAllocator(enrollmentRepo, cfg.Enrollment.CodeMaxAttempts, metrics, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, directoryRepo, termSvc, codes, nil, logr)
	rankingSvc := service.NewRankingService(enrollmentRepo, enrollmentRepo, gradeRepo, gradeRepo, termSvc, locker, metrics, logr.Named("ranking"))

	var scheduler service.SubjectRankScheduler
	if cfg.Ranking.AutoRecompute {
		rankScheduler := service.NewRankingScheduler(rankingSvc, jobs.QueueConfig{
			Workers:    cfg.Ranking.Workers,
			MaxRetries: cfg.Ranking.Retries,
			RetryDelay: time.Second,
			Logger:     logr.Named("ranking-scheduler"),
		})
		rankScheduler.Start(ctx)
		defer rankScheduler.Stop()
		scheduler = rankScheduler
	}
	gradeSvc := service.NewGradeService(gradeRepo, enrollmentRepo, directoryRepo, scheduler, nil, logr)

	routes := handlers{
		terms:       handler.NewTermHandler(termSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		grades:      handler.NewGradeHandler(gradeSvc),
		rankings:    handler.NewRankingHandler(rankingSvc),
	}
	if cfg.Reports.Enabled {
		routes.reports = handler.NewReportHandler(service.NewExportService(enrollmentRepo, directoryRepo, termSvc, logr, nil, nil))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routes)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
