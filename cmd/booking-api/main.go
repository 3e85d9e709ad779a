package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/lawanalytics/booking-api/api/swagger"
	"github.com/lawanalytics/booking-api/internal/handler"
	"github.com/lawanalytics/booking-api/internal/middleware"
	"github.com/lawanalytics/booking-api/internal/repository"
	"github.com/lawanalytics/booking-api/internal/service"
	"github.com/lawanalytics/booking-api/pkg/cache"
	"github.com/lawanalytics/booking-api/pkg/config"
	"github.com/lawanalytics/booking-api/pkg/database"
	"github.com/lawanalytics/booking-api/pkg/jobs"
	"github.com/lawanalytics/booking-api/pkg/logger"
	corsmiddleware "github.com/lawanalytics/booking-api/pkg/middleware/cors"
	"github.com/lawanalytics/booking-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/lawanalytics/booking-api/pkg/middleware/requestid"
)

// @title Law Analytics Booking API
// @version 1.0.0
// @description Public booking availability and reservation endpoints.
// @BasePath /api
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "booking", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.CacheTTL, logr,
		cfg.Availability.CacheEnabled && redisClient != nil)

	validate := service.NewValidator()
	bookingRepo := repository.NewBookingRepository(db)
	availabilitySvc := service.NewAvailabilityService(service.AvailabilityServiceParams{
		Settings:  repository.NewAvailabilityRepository(db),
		Bookings:  bookingRepo,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config: service.AvailabilityServiceConfig{
			CacheTTL:        cfg.Availability.CacheTTL,
			MaxRangeDays:    cfg.Export.MaxRangeDays,
			DefaultTimezone: cfg.Availability.DefaultTimezone,
		},
	})

	queue := jobs.NewQueue("booking", jobs.QueueConfig{
		Workers:    cfg.Booking.QueueWorkers,
		MaxRetries: cfg.Booking.QueueRetries,
		RetryDelay: cfg.Booking.QueueRetryDelay,
		Logger:     logr,
	})
	queue.Register(service.JobInvalidateAvailability, availabilitySvc.HandleInvalidateJob)
	queue.Start(ctx)
	defer queue.Stop()

	bookingSvc := service.NewBookingService(bookingRepo, availabilitySvc, queue, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(availabilitySvc, logr, nil)

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, exportSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc.Handler(), map[string]handler.ReadinessCheck{
		"postgres": database.ReadyCheck(db),
		"redis":    cacheRepo.Ping,
	})

	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.Booking.RateLimitPerMinute,
		Burst:     cfg.Booking.RateLimitBurst,
		IdleTTL:   cfg.Booking.RateLimitIdleTTL,
		Logger:    logr,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	booking := api.Group("/booking")
	{
		public := booking.Group("/public")
		public.GET("/availability/:slug", availabilityHandler.Get)
		public.GET("/availability/:slug/slots", availabilityHandler.Slots)
		public.GET("/availability/:slug/first-available", availabilityHandler.FirstAvailable)
		public.GET("/availability/:slug/calendar", availabilityHandler.Calendar)
		public.POST("/bookings", limiter.Middleware(), bookingHandler.Create)

		booking.GET("/availability/:slug/export", availabilityHandler.Export)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
