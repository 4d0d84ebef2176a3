package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/bentech3/online-board-api/api/swagger"
	"github.com/bentech3/online-board-api/internal/handler"
	"github.com/bentech3/online-board-api/internal/middleware"
	"github.com/bentech3/online-board-api/internal/migration"
	"github.com/bentech3/online-board-api/internal/models"
	"github.com/bentech3/online-board-api/internal/moderation"
	"github.com/bentech3/online-board-api/internal/realtime"
	"github.com/bentech3/online-board-api/internal/repository"
	"github.com/bentech3/online-board-api/internal/service"
	"github.com/bentech3/online-board-api/pkg/cache"
	"github.com/bentech3/online-board-api/pkg/config"
	"github.com/bentech3/online-board-api/pkg/database"
	"github.com/bentech3/online-board-api/pkg/logger"
	corsmiddleware "github.com/bentech3/online-board-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bentech3/online-board-api/pkg/middleware/requestid"
	"github.com/bentech3/online-board-api/pkg/storage"
)

// @title Online Board API
// @version 1.0.0
// @description University notice board with moderated submissions
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := migration.Up(db); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and realtime relay disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare uploads directory", "error", err)
	}

	validate := validator.New()

	var bus *realtime.Bus
	if cfg.Realtime.Enabled {
		bus = realtime.NewBus(redisClient, cfg.Realtime.Channel, logr)
		bus.Start(ctx)
	}

	// repositories
	userRepo := repository.NewUserRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	viewRepo := repository.NewViewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// services
	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(auditRepo, logr)
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "online-board-api",
	})
	screener := moderation.NewScreener()
	noticeSvc := service.NewNoticeService(noticeRepo, screener, auditSvc, bus, cacheRepo, cfg.Notices.CacheTTL, validate, logr)
	userSvc := service.NewUserService(userRepo, auditSvc, validate, logr)
	exportSvc := service.NewExportService(auditSvc, logr)
	viewSvc := service.NewViewService(viewRepo, cfg.Views.WorkerConcurrency, cfg.Views.WorkerRetries, logr)
	viewSvc.Start(ctx)
	defer viewSvc.Stop()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				viewSvc.PruneSessions(24 * time.Hour)
			}
		}
	}()

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	noticeHandler := handler.NewNoticeHandler(noticeSvc, viewSvc, metricsSvc)
	auditHandler := handler.NewAuditHandler(auditSvc, exportSvc)
	userHandler := handler.NewUserHandler(userSvc)
	uploadHandler := handler.NewUploadHandler(store, handler.UploadConfig{
		PublicBaseURL: cfg.Uploads.PublicBaseURL,
		MaxSizeBytes:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:  cfg.Uploads.AllowedMIMEs,
	}, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static("/uploads", store.BaseDir())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	notices := api.Group("/notices")
	{
		notices.GET("", middleware.OptionalJWT(authSvc), noticeHandler.List)
		notices.GET("/:id", middleware.OptionalJWT(authSvc), noticeHandler.Get)
		notices.POST("", middleware.JWT(authSvc), noticeHandler.Create)
		notices.POST("/:id/approve", middleware.JWT(authSvc), noticeHandler.Approve)
		notices.POST("/:id/reject", middleware.JWT(authSvc), noticeHandler.Reject)
		notices.DELETE("/:id", middleware.JWT(authSvc), noticeHandler.Delete)
	}

	api.POST("/uploads", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStaff, models.RoleAdmin), uploadHandler.Upload)

	audit := api.Group("/audit", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		audit.GET("", auditHandler.List)
		audit.GET("/export", auditHandler.Export)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id/role", userHandler.AssignRole)
	}

	if bus != nil {
		eventsHandler := handler.NewEventsHandler(bus, logr)
		api.GET("/events", eventsHandler.Stream)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
