// Package main runs the distribution API server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solidariza/backend/config"
	"github.com/solidariza/backend/internal/audit"
	"github.com/solidariza/backend/internal/auth"
	"github.com/solidariza/backend/internal/deliveries"
	"github.com/solidariza/backend/internal/events"
	"github.com/solidariza/backend/internal/membership"
	"github.com/solidariza/backend/internal/middleware"
	"github.com/solidariza/backend/internal/organizations"
	"github.com/solidariza/backend/internal/realtime"
	"github.com/solidariza/backend/internal/stock"
	"github.com/solidariza/backend/pkg/database"
	"github.com/solidariza/backend/pkg/logger"
	"github.com/solidariza/backend/pkg/metrics"
	"github.com/solidariza/backend/pkg/queue"
	"github.com/solidariza/backend/pkg/redis"
	"github.com/solidariza/backend/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis carries audit jobs and the cross-instance live feed. Without it
	// audit entries are only logged and the feed stays on this instance.
	var enqueuer audit.Enqueuer
	var hub *realtime.Hub
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warn("redis unavailable, audit queue and feed fan-out disabled", zap.Error(err))
		hub = realtime.NewHub(log, nil, nil)
	} else {
		defer rdb.Close()
		if cfg.Audit.Enabled {
			enqueuer = queue.NewQueue(rdb.Client, log)
		}
		bridge := realtime.NewRedisPubSub(rdb.Client, log)
		hub = realtime.NewHub(log, bridge, bridge)
	}
	recorder := audit.NewRecorder(enqueuer, log)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth and collaborators
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, log)

	// Organizations
	orgStore := organizations.NewPostgresStore(pool)
	orgHandler := organizations.NewHandler(orgStore, userRepo, recorder)

	// Stock ledger
	stockRepo := stock.NewRepository(pool)
	stockHandler := stock.NewHandler(stockRepo, recorder, hub)

	// Beneficiaries, families, guardians
	memberRepo := membership.NewRepository(pool)
	memberHandler := membership.NewHandler(memberRepo, membership.NewRegistry(pool), recorder)

	// Events and attendance
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, memberRepo, recorder)

	// Deliveries
	deliveryService := deliveries.NewService(deliveries.NewPostgresStore(pool), cfg.Delivery.Window)
	deliveryHandler := deliveries.NewHandler(deliveryService, recorder, hub)

	auditHandler := audit.NewHandler(audit.NewRepository(pool))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.RequestID(log))
	router.Use(middleware.Logger())
	if cfg.Server.MetricsEnabled {
		router.Use(metrics.NewHTTPMetrics("solidariza-api").Middleware())
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, response.Body{Success: false, Error: "database unreachable"})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	router.POST("/auth/login", authHandler.Login)

	// Live feed (token in query)
	router.GET("/ws", realtime.ServeWs(hub, jwtService, log))

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Network administration
		admin := api.Group("/organizations")
		admin.GET("", orgHandler.ListOrganizations)
		admin.GET("/:id", orgHandler.GetOrganization)
		admin.POST("", middleware.RequireSuperuser(), orgHandler.CreateOrganization)
		admin.PATCH("/:id/toggle-active", middleware.RequireSuperuser(), orgHandler.ToggleActive)
		admin.DELETE("/:id", middleware.RequireSuperuser(), orgHandler.DeleteOrganization)
	}

	// Everything below acts for the active organization
	org := api.Group("")
	org.Use(middleware.RequireOrganization())
	{
		org.GET("/collaborators", orgHandler.ListCollaborators)
		org.POST("/collaborators", middleware.RequireManager(), orgHandler.CreateCollaborator)

		org.GET("/products", stockHandler.ListProducts)
		org.POST("/products", middleware.RequireManager(), stockHandler.CreateProduct)
		org.GET("/products/:id", stockHandler.GetProduct)
		org.GET("/products/:id/movements", stockHandler.ListMovements)
		org.POST("/products/:id/movements", middleware.RequireManager(), stockHandler.RecordMovement)

		org.GET("/beneficiaries", memberHandler.ListBeneficiaries)
		org.POST("/beneficiaries", memberHandler.CreateBeneficiary)
		org.GET("/beneficiaries/lookup", memberHandler.LookupBeneficiary)
		org.GET("/beneficiaries/:id", memberHandler.GetBeneficiary)
		org.POST("/beneficiaries/:id/link", memberHandler.LinkBeneficiary)
		org.POST("/families", memberHandler.CreateFamily)
		org.GET("/families/:id", memberHandler.GetFamily)
		org.POST("/families/:id/members", memberHandler.AddMember)
		org.POST("/guardians", memberHandler.CreateGuardian)

		org.GET("/events", eventHandler.ListEvents)
		org.POST("/events", middleware.RequireManager(), eventHandler.CreateEvent)
		org.GET("/events/:id", eventHandler.GetEvent)
		org.PUT("/events/:id/attendance", middleware.RequireManager(), eventHandler.MarkAttendance)

		org.POST("/deliveries", deliveryHandler.Deliver)
		org.GET("/deliveries/check-by-identifier", deliveryHandler.CheckByIdentifier)
		org.GET("/distributions", deliveryHandler.List)

		org.GET("/audit-logs", middleware.RequireManager(), auditHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
