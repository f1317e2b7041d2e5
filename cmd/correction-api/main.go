package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-correction-api/internal/handler"
	"github.com/noah-isme/sma-correction-api/internal/middleware"
	"github.com/noah-isme/sma-correction-api/internal/repository"
	"github.com/noah-isme/sma-correction-api/internal/service"
	"github.com/noah-isme/sma-correction-api/pkg/config"
	"github.com/noah-isme/sma-correction-api/pkg/database"
	"github.com/noah-isme/sma-correction-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-correction-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-correction-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-correction-api/pkg/sysinfo"
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	correctionRepo := repository.NewCorrectionRepository(db)
	listingRepo := repository.NewListingRepository(db)
	userRepo := repository.NewUserRepository(db)

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := correctionRepo.InitSchema(bootCtx); err != nil {
		logr.Sugar().Fatalw("failed to init schema", "error", err)
	}

	validate := validator.New()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	if cfg.Corrections.SeedUsers {
		if err := authSvc.SeedDefaultUsers(bootCtx); err != nil {
			logr.Sugar().Fatalw("failed to seed users", "error", err)
		}
	}

	metricsSvc := service.NewMetricsService()
	correctionSvc := service.NewCorrectionService(correctionRepo, logr,
		service.WithLifecycleMetrics(metricsSvc))
	listingSvc := service.NewListingService(listingRepo, correctionRepo, cfg.Corrections.HistoryLimit, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	correctionHandler := handler.NewCorrectionHandler(correctionSvc, listingSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	host := sysinfo.Collect()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.ClientContext(host))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	corrections := api.Group("/corrections", middleware.JWT(authSvc))
	corrections.POST("", correctionHandler.Create)
	corrections.GET("/pending", correctionHandler.ListPending)
	corrections.GET("/history", correctionHandler.ListHistory)
	corrections.GET("/:id", correctionHandler.Get)
	corrections.POST("/:id/approve", middleware.RequirePrivileged(), correctionHandler.Approve)
	corrections.POST("/:id/reject", middleware.RequirePrivileged(), correctionHandler.Reject)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "host", host.Hostname)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
