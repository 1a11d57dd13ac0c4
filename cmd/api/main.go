package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "hrportal/api/swagger" // swagger docs
	"hrportal/internal/changefeed"
	"hrportal/internal/config"
	"hrportal/internal/database"
	"hrportal/internal/events"
	"hrportal/internal/handler"
	"hrportal/internal/metrics"
	"hrportal/internal/middleware"
	"hrportal/internal/repository"
	"hrportal/internal/service"
	"hrportal/internal/websocket"
	"hrportal/pkg/logger"
	redisclient "hrportal/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configPath string

// @title           HR Portal Request API
// @version         1.0
// @description     Multi-level approval routing for employee requests.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	root := &cobra.Command{
		Use:          "hrportal",
		Short:        "HR portal request routing service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	return cfg, log, db, nil
}

func runMigrate() error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("Schema is up to date")
	return nil
}

func runServe(ctx context.Context) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	feed, err := newFeed(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)
	txManager := repository.NewTransactionManager(db)

	dispatcher := events.NewDispatcher(log)
	defer func() { _ = dispatcher.Close() }()

	userService := service.NewUserService(userRepo, cfg.JWT)
	notificationService := service.NewNotificationService(notificationRepo)
	auditService := service.NewAuditService(auditRepo)
	projectionService := service.NewProjectionService(requestRepo, cfg.Approval)
	statisticsService := service.NewStatisticsService(statisticsRepo)
	requestService := service.NewRequestService(
		requestRepo,
		txManager,
		service.NewIdentityProvider(userRepo),
		dispatcher,
		cfg.Approval,
		log,
	)

	dispatcher.Subscribe("notifications", notificationService.Notify,
		events.RequestSubmitted, events.RequestAdvanced, events.RequestApproved, events.RequestRejected, events.RequestCancelled)
	dispatcher.Subscribe("audit", auditService.Record, events.AllTypes...)
	dispatcher.Subscribe("changefeed", changefeed.Observe(feed), events.AllTypes...)
	dispatcher.Subscribe("metrics", metrics.ObserveTransition, events.AllTypes...)

	secret := []byte(cfg.JWT.Secret)
	wsHub := websocket.NewHub(projectionService, feed, secret, log)
	go wsHub.Run(ctx)

	adminRoles := cfg.Approval.AdminRoles
	secureCookie := cfg.Server.Mode == gin.ReleaseMode

	userHandler := handler.NewUserHandler(userService, cfg.JWT.TTL, secureCookie, "admin", "hr_admin")
	requestHandler := handler.NewRequestHandler(requestService, projectionService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	auditHandler := handler.NewAuditHandler(auditService, adminRoles...)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService, adminRoles...)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.Logger(log), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(pingCtx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", wsHub.ServeWs)

	api := router.Group("/api")
	userHandler.RegisterPublicRoutes(api)

	protected := api.Group("", middleware.RequireAuth(secret))
	userHandler.RegisterRoutes(protected)
	requestHandler.RegisterRoutes(protected)
	notificationHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)
	statisticsHandler.RegisterRoutes(protected)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// newFeed picks the in-process feed, or the redis-backed one when several instances share
// a database.
func newFeed(ctx context.Context, cfg *config.Config, log *zap.Logger) (changefeed.Feed, error) {
	client, err := redisclient.New(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	if client == nil {
		return changefeed.NewLocal(), nil
	}

	feed := changefeed.NewRedis(client, cfg.Redis.Channel, log)
	go func() {
		if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Change feed stopped", zap.Error(err))
		}
	}()
	return feed, nil
}
