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

	"github.com/teamshare/teamshare-api/internal/handler"
	"github.com/teamshare/teamshare-api/internal/middleware"
	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/internal/service"
	"github.com/teamshare/teamshare-api/pkg/cache"
	"github.com/teamshare/teamshare-api/pkg/config"
	"github.com/teamshare/teamshare-api/pkg/database"
	"github.com/teamshare/teamshare-api/pkg/logger"
	"github.com/teamshare/teamshare-api/pkg/mailer"
	corsmiddleware "github.com/teamshare/teamshare-api/pkg/middleware/cors"
	reqidmiddleware "github.com/teamshare/teamshare-api/pkg/middleware/requestid"
	"github.com/teamshare/teamshare-api/pkg/storage"
)

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

	uploads, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload dir", "error", err)
	}
	publicShare, err := storage.NewPublicShare(cfg.Storage.PublicShareDir, cfg.Storage.PublicURLBase)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare public share", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, roster cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.UsersTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	mail := mailer.New(cfg.SMTP, logr)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, mail, cfg.Notifications, logr)
	authSvc := service.NewAuthService(userRepo, activityRepo, notificationSvc, cfg.JWT, logr)
	userSvc := service.NewUserService(userRepo, cacheSvc, cfg.Cache, activityRepo, logr)
	fileSvc := service.NewFileService(fileRepo, uploads, publicShare, activityRepo, notificationSvc, cfg.Storage, logr)
	reviewSvc := service.NewReviewService(fileRepo, userRepo, uploads, publicShare, activityRepo, notificationSvc, logr)
	commentSvc := service.NewCommentService(commentRepo, fileRepo, assignmentRepo, activityRepo, notificationSvc, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userSvc, fileRepo, uploads, activityRepo, notificationSvc, logr)
	activitySvc := service.NewActivityService(activityRepo, logr)
	exportSvc := service.NewExportService(fileRepo, signer, activityRepo, cfg.Exports, logr)
	indexerSvc := service.NewIndexerService(publicShare, activityRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()
	indexerSvc.Start(ctx)
	defer indexerSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	fileHandler := handler.NewFileHandler(fileSvc, userSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc, userSvc)
	commentHandler := handler.NewCommentHandler(commentSvc, userSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc, userSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	exportHandler := handler.NewExportHandler(exportSvc, userSvc)
	indexerHandler := handler.NewIndexerHandler(indexerSvc, userSvc)
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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.POST("", middleware.RBAC(models.RoleAdmin), userHandler.Create)
		users.GET("", middleware.RBAC(models.RoleAdmin, models.RoleTeamLeader), userHandler.List)
		users.GET("/:id", middleware.RBAC(models.RoleAdmin, models.RoleTeamLeader, "SELF"), userHandler.Get)
		users.GET("/team/:team", userHandler.ListByTeam)
		users.PATCH("/:id", middleware.RBAC(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RBAC(models.RoleAdmin), userHandler.Delete)
		users.POST("/:id/reset-token", middleware.RBAC(models.RoleAdmin), authHandler.IssueResetToken)
	}

	files := api.Group("/files", middleware.JWT(authSvc))
	{
		files.POST("", fileHandler.Upload)
		files.GET("", fileHandler.List)
		files.GET("/:id", fileHandler.Get)
		files.GET("/:id/download", fileHandler.Download)
		files.GET("/:id/history", fileHandler.History)
		files.DELETE("/:id", fileHandler.Delete)
		files.POST("/:id/review", middleware.RBAC(models.RoleTeamLeader), reviewHandler.TeamLeaderDecision)
		files.POST("/:id/final-review", middleware.RBAC(models.RoleAdmin), reviewHandler.AdminDecision)
		files.POST("/:id/comments", commentHandler.AddFileComment)
		files.GET("/:id/comments", commentHandler.ListFileComments)
	}

	assignments := api.Group("/assignments", middleware.JWT(authSvc))
	{
		assignments.POST("", middleware.RBAC(models.RoleAdmin, models.RoleTeamLeader), assignmentHandler.Create)
		assignments.GET("", assignmentHandler.List)
		assignments.GET("/:id", assignmentHandler.Get)
		assignments.DELETE("/:id", assignmentHandler.Delete)
		assignments.POST("/:id/submissions", assignmentHandler.SubmitFile)
		assignments.DELETE("/:id/submissions/:submissionID", assignmentHandler.RemoveSubmission)
		assignments.POST("/:id/comments", commentHandler.AddAssignmentComment)
		assignments.GET("/:id/comments", commentHandler.ListAssignmentComments)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
		notifications.DELETE("", notificationHandler.DeleteAll)
	}

	exports := api.Group("/exports")
	{
		exports.POST("/history", middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin, models.RoleTeamLeader), exportHandler.Generate)
		// Download authenticates via the signed token alone.
		exports.GET("/download", exportHandler.Download)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RBAC(models.RoleAdmin))
	{
		admin.GET("/activity", activityHandler.List)
		admin.POST("/reindex", indexerHandler.Trigger)
		admin.GET("/reindex/status", indexerHandler.Status)
		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("forced shutdown", "error", err)
	}
}
