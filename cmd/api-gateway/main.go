package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edustack/institute-api/api/swagger"
	"github.com/edustack/institute-api/internal/handler"
	"github.com/edustack/institute-api/internal/middleware"
	"github.com/edustack/institute-api/internal/repository"
	"github.com/edustack/institute-api/internal/service"
	"github.com/edustack/institute-api/pkg/cache"
	"github.com/edustack/institute-api/pkg/config"
	"github.com/edustack/institute-api/pkg/database"
	"github.com/edustack/institute-api/pkg/logger"
	corsmiddleware "github.com/edustack/institute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edustack/institute-api/pkg/middleware/requestid"
)

// @title Institute Scheduling & Collections API
// @version 1.0.0
// @description Branch-scoped faculty scheduling, substitution and follow-up backend
// @BasePath /
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached computation without Redis.
		logr.Sugar().Warnw("redis unavailable, slot caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	checker := service.NewConflictChecker(availabilityRepo, batchRepo, substitutionRepo)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, facultyRepo, batchRepo, substitutionRepo, cacheRepo, metricsSvc, nil, logr, service.AvailabilityServiceConfig{
		CacheTTL:     cfg.Slots.CacheTTL,
		MaxRangeDays: cfg.Slots.MaxRangeDays,
	})
	substitutionSvc := service.NewSubstitutionService(substitutionRepo, batchRepo, facultyRepo, checker, cacheRepo, nil, logr)
	suggestionSvc := service.NewSuggestionService(facultyRepo, checker, nil, logr)
	followUpSvc := service.NewFollowUpService(followUpRepo, nil, logr, service.FollowUpServiceConfig{
		ExportEnabled: cfg.FollowUp.ExportEnabled,
		MaxExportRows: cfg.FollowUp.MaxExportRows,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	substitutionHandler := handler.NewSubstitutionHandler(substitutionSvc, suggestionSvc)
	followUpHandler := handler.NewFollowUpHandler(followUpSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/availability/:facultyId", availabilityHandler.GetWeek)
	protected.PUT("/availability/:facultyId", availabilityHandler.ReplaceWeek)
	protected.GET("/free-slots", availabilityHandler.FreeSlots)

	protected.POST("/substitutions", substitutionHandler.Create)
	protected.PUT("/substitutions/:id", substitutionHandler.Update)
	protected.DELETE("/substitutions/:id", substitutionHandler.Delete)
	protected.POST("/substitutions/assign", substitutionHandler.Assign)
	protected.POST("/suggest-faculty", substitutionHandler.Suggest)

	protected.GET("/follow-ups", followUpHandler.List)
	protected.POST("/follow-ups/:admissionId/logs", followUpHandler.CreateLog)
	protected.GET("/follow-ups/export", followUpHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
