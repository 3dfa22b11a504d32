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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/fieldservice-api/api/swagger"
	"github.com/noah-isme/fieldservice-api/internal/handler"
	"github.com/noah-isme/fieldservice-api/internal/recurrence"
	"github.com/noah-isme/fieldservice-api/internal/repository"
	"github.com/noah-isme/fieldservice-api/internal/service"
	"github.com/noah-isme/fieldservice-api/pkg/cache"
	"github.com/noah-isme/fieldservice-api/pkg/config"
	"github.com/noah-isme/fieldservice-api/pkg/database"
	"github.com/noah-isme/fieldservice-api/pkg/jobs"
	"github.com/noah-isme/fieldservice-api/pkg/logger"
	"github.com/noah-isme/fieldservice-api/pkg/maps"
)

// @title Field Service Scheduling API
// @version 0.1.0
// @description Availability, slot search, recurrence, workload balancing, auto-assignment and route sequencing.
// @BasePath /
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(cfg.Scheduling.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid scheduling timezone", "timezone", cfg.Scheduling.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := buildApp(ctx, cfg, loc, db, redisClient, logr)
	defer app.queue.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type app struct {
	router *gin.Engine
	queue  *jobs.Queue
}

func buildApp(ctx context.Context, cfg *config.Config, loc *time.Location, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *app {
	validate := validator.New()
	metrics := service.NewMetricsService()

	eventRepo := repository.NewScheduleEventRepository(db)
	ruleRepo := repository.NewAvailabilityRuleRepository(db)
	scheduleRepo := repository.NewRecurringScheduleRepository(db)
	technicianRepo := repository.NewTechnicianRepository(db)
	jobRepo := repository.NewJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	schedulingCfg := service.SchedulingConfig{
		Location:            loc,
		WorkloadThreshold:   cfg.Scheduling.WorkloadThreshold,
		DefaultEventMinutes: cfg.Scheduling.DefaultEventMinutes,
	}

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Availability.CacheTTL, logr, cfg.Availability.CacheEnabled && redisClient != nil)
	availabilitySvc := service.NewAvailabilityService(ruleRepo, cacheSvc, validate, logr, service.AvailabilityConfig{
		Location: loc,
		CacheTTL: cfg.Availability.CacheTTL,
	})
	slotSvc := service.NewSlotService(availabilitySvc, eventRepo, metrics, logr, schedulingCfg)
	conflictSvc := service.NewConflictService(eventRepo, metrics, logr, schedulingCfg)
	workloadSvc := service.NewWorkloadService(availabilitySvc, eventRepo, logr, schedulingCfg)
	assignmentSvc := service.NewAssignmentService(technicianRepo, jobRepo, conflictSvc, workloadSvc, metrics, validate, logr, schedulingCfg)
	routeSvc := service.NewRouteService(newDistanceProvider(cfg.Maps, logr), metrics, validate, logr, service.RouteConfig{
		MaxWaypoints: cfg.Maps.MaxWaypoints,
	})
	bookingSvc := service.NewBookingService(eventRepo, technicianRepo, slotSvc, db, metrics, validate, logr, schedulingCfg)

	engine := recurrence.NewEngine(loc,
		recurrence.WithDefaultDuration(time.Duration(cfg.Scheduling.DefaultEventMinutes)*time.Minute),
		recurrence.WithHorizonMonths(cfg.Scheduling.NextOccurrenceHorizonMon),
	)

	// The queue handler and the service reference each other; the closure breaks the cycle.
	var worker *service.RegenerationWorker
	queue := jobs.NewQueue("recurrence-regeneration", func(ctx context.Context, job jobs.Job) error {
		return worker.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Recurrence.Workers,
		MaxRetries: cfg.Recurrence.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	recurrenceSvc := service.NewRecurrenceService(scheduleRepo, eventRepo, db, queue, engine, metrics, validate, logr, service.RecurrenceConfig{
		Location:           loc,
		DefaultHorizonDays: int(cfg.Recurrence.RegenerateHorizon.Hours() / 24),
	})
	worker = service.NewRegenerationWorker(recurrenceSvc, metrics, logr)
	queue.Start(ctx)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	}), metrics, handlers{
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		slots:        handler.NewSlotHandler(slotSvc, conflictSvc, cfg.Scheduling.DefaultEventMinutes),
		recurring:    handler.NewRecurringScheduleHandler(recurrenceSvc),
		dispatch:     handler.NewDispatchHandler(workloadSvc, assignmentSvc),
		routes:       handler.NewRouteHandler(routeSvc),
		events:       handler.NewEventHandler(bookingSvc),
		metrics:      handler.NewMetricsHandler(metrics, checks),
	})

	return &app{router: router, queue: queue}
}

func newDistanceProvider(cfg config.MapsConfig, logr *zap.Logger) maps.Provider {
	if cfg.Provider == config.MapsProviderGoogle {
		if cfg.APIKey != "" {
			return maps.NewGoogleClient(maps.GoogleConfig{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.BaseURL,
				Timeout: cfg.Timeout,
			}, nil, logr)
		}
		logr.Warn("MAPS_PROVIDER=google without MAPS_API_KEY, falling back to haversine")
	}
	return maps.NewHaversineProvider(nil)
}
