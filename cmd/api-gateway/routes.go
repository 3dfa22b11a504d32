package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldservice-api/internal/handler"
	"github.com/noah-isme/fieldservice-api/internal/middleware"
	"github.com/noah-isme/fieldservice-api/internal/models"
	"github.com/noah-isme/fieldservice-api/internal/service"
	"github.com/noah-isme/fieldservice-api/pkg/config"
	"github.com/noah-isme/fieldservice-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fieldservice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fieldservice-api/pkg/middleware/requestid"
)

type handlers struct {
	availability *handler.AvailabilityHandler
	slots        *handler.SlotHandler
	recurring    *handler.RecurringScheduleHandler
	dispatch     *handler.DispatchHandler
	routes       *handler.RouteHandler
	events       *handler.EventHandler
	metrics      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleDispatcher)
	staffOrSelf := middleware.RBAC(string(models.RoleAdmin), string(models.RoleDispatcher), middleware.SelfTechnician)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(auth), middleware.WithResponseMeta())

	api.GET("/metrics/summary", staff, h.metrics.Status)

	technicians := api.Group("/technicians/:id", staffOrSelf)
	technicians.GET("/availability", h.availability.Resolve)
	technicians.GET("/slots", h.slots.Slots)
	technicians.GET("/slot-check", h.slots.SlotCheck)

	rules := api.Group("/availability-rules", staff)
	rules.PUT("", h.availability.UpsertRule)
	rules.DELETE("/:id", h.availability.DeleteRule)

	api.POST("/conflicts/detect", staff, h.slots.DetectConflicts)

	recurring := api.Group("/recurring-schedules", staff)
	recurring.GET("", h.recurring.List)
	recurring.POST("", h.recurring.Create)
	recurring.POST("/regenerate", h.recurring.Regenerate)
	recurring.GET("/:id", h.recurring.Get)
	recurring.PUT("/:id", h.recurring.Update)
	recurring.DELETE("/:id", h.recurring.Delete)
	recurring.POST("/:id/generate", h.recurring.Generate)
	recurring.GET("/:id/next-occurrence", h.recurring.NextOccurrence)

	api.POST("/workload/balance", staff, h.dispatch.Balance)
	api.POST("/jobs/:id/auto-assign", staff, h.dispatch.AutoAssign)
	api.POST("/routes/optimize", h.routes.Optimize)

	events := api.Group("/events")
	events.POST("", staff, h.events.Book)
	events.PUT("/:id/reschedule", staff, h.events.Reschedule)
	events.PATCH("/:id/status", h.events.UpdateStatus)
	events.DELETE("/:id", staff, h.events.Cancel)

	return r
}
