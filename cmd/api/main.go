package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gpt400/schedule-gap-api/api/swagger"
	"github.com/gpt400/schedule-gap-api/internal/handler"
	internalmiddleware "github.com/gpt400/schedule-gap-api/internal/middleware"
	"github.com/gpt400/schedule-gap-api/internal/repository"
	"github.com/gpt400/schedule-gap-api/internal/service"
	"github.com/gpt400/schedule-gap-api/pkg/cache"
	"github.com/gpt400/schedule-gap-api/pkg/config"
	"github.com/gpt400/schedule-gap-api/pkg/database"
	"github.com/gpt400/schedule-gap-api/pkg/jobs"
	"github.com/gpt400/schedule-gap-api/pkg/logger"
	corsmiddleware "github.com/gpt400/schedule-gap-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gpt400/schedule-gap-api/pkg/middleware/requestid"
	"github.com/gpt400/schedule-gap-api/pkg/storage"
)

// @title Schedule Gap API
// @version 1.0.0
// @description Weekly availability grids and shared meeting-gap discovery
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Compare.CacheTTL, logr, cfg.Compare.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	scheduleSvc := service.NewScheduleService(userRepo, cacheSvc, logr)
	compareSvc := service.NewCompareService(userRepo, cacheSvc, metricsSvc, logr, cfg.Compare.CacheTTL)

	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(reportStorage, signer)

	reportSvc := service.NewReportService(reportRepo, compareSvc, exportSvc, validate, logr, service.ReportConfig{
		DownloadPath: cfg.APIPrefix + "/reports/download",
		ResultTTL:    cfg.Reports.SignedURLTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportQueue = jobs.NewQueue("reports", reportSvc.Process, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportSvc.Attach(reportQueue)
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		if err := reportSvc.Recover(ctx); err != nil {
			logr.Sugar().Warnw("failed to recover queued reports", "error", err)
		}

		go func() {
			ticker := time.NewTicker(cfg.Reports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := reportSvc.CleanupExpired(ctx); err != nil {
						logr.Sugar().Warnw("report cleanup failed", "error", err)
					}
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		User:     handler.NewUserHandler(userSvc),
		Schedule: handler.NewScheduleHandler(scheduleSvc, exportSvc),
		Compare:  handler.NewCompareHandler(compareSvc),
		Report:   handler.NewReportHandler(reportSvc),
	}, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
