package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/NeuEntity/surm-student-portal-sub000/api/swagger"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/handler"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/middleware"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/repository"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/service"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/cache"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/config"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/database"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/logger"
	corsmiddleware "github.com/NeuEntity/surm-student-portal-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/NeuEntity/surm-student-portal-sub000/pkg/middleware/requestid"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/storage"
)

// @title Student Portal Submission API
// @version 1.0.0
// @description Leave entitlement and submission approval engine
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The engine serves without Redis; only the overview loses its cache.
		logr.Sugar().Warnw("redis unavailable, overview cache disabled", "error", err)
		redisClient = nil
	}

	auditRepo := repository.NewAuditRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db, auditRepo)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	entitlements := models.NewEntitlementTable(cfg.Entitlement)
	signer := storage.NewAttachmentSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT)
	balanceSvc := service.NewBalanceService(userRepo, submissionRepo, entitlements, logr)

	overviewSvc := service.NewOverviewService(balanceSvc, submissionRepo, userRepo, cacheRepo, cfg.Overview.CacheTTL, logr)

	submissionSvc := service.NewSubmissionService(submissionRepo, userRepo, entitlements, cfg.Entitlement.StudentSubmissionCap, overviewSvc, logr)
	approvalSvc := service.NewApprovalService(submissionRepo, userRepo, overviewSvc, logr)
	auditSvc := service.NewAuditService(auditRepo, submissionRepo, userRepo)

	submissionHandler := handler.NewSubmissionHandler(submissionSvc, approvalSvc, balanceSvc, overviewSvc, auditSvc, signer, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.POST("/submissions", submissionHandler.Create)
		api.GET("/submissions", submissionHandler.List)
		api.GET("/submissions/:id", submissionHandler.Get)
		api.POST("/submissions/:id/decision", submissionHandler.Decide)
		api.GET("/submissions/:id/audit", submissionHandler.AuditTrail)
		api.GET("/submissions/:id/attachment-url", submissionHandler.AttachmentURL)

		// Scope for per-person reads (self, admin, principal) is enforced
		// in the services; the principal flag needs a user lookup that a
		// token-only middleware cannot do.
		api.GET("/users/:id/leave-balance", submissionHandler.Balance)
		if cfg.Overview.Enabled {
			api.GET("/users/:id/leave-overview", submissionHandler.Overview)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
