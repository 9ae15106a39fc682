package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	grpcserver "messenger-service/internal/grpc"
	"messenger-service/internal/handlers"
	"messenger-service/internal/logging"
	"messenger-service/internal/maintenance"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		_, _ = os.Stderr.WriteString("log init error: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run owns every resource it opens and releases them before returning.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		shutdownTracer = func(context.Context) error { return nil }
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditor := telemetry.NewAuditEmitter(publisher, cfg.AuditRouting, cfg.ServiceName, cfg.Environment, logger)
	logger.Info("amqp publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("reason", rabbitmq.PublisherNoopReason(publisher)))

	identityRepo := repositories.NewIdentityRepo(database)
	profileRepo := repositories.NewProfileRepo(database)
	friendshipRepo := repositories.NewFriendshipRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	authService := auth.NewService(identityRepo, profileRepo, []byte(cfg.JWTSecret), cfg.TokenTTL)

	hub := ws.NewHub(logger)

	authHandler := handlers.NewAuthHandler(authService, auditor)
	profileHandler := handlers.NewProfileHandler(profileRepo)
	friendshipHandler := handlers.NewFriendshipHandler(friendshipRepo, auditor)
	roomHandler := handlers.NewRoomHandler(roomRepo, profileRepo, auditor)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, hub, auditor)
	feedWS := ws.NewFeedHandler(hub, authService, logger)

	router := gin.New()

	// middlewares
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestLogger(logger))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(authService)

	router.POST("/auth/signup", authHandler.SignUp)
	router.POST("/auth/signin", authHandler.SignIn)

	router.GET("/profiles/me", authMiddleware, profileHandler.Me)
	router.PATCH("/profiles/me", authMiddleware, profileHandler.UpdateMe)
	router.GET("/profiles", authMiddleware, profileHandler.List)
	router.GET("/profiles/lookup", authMiddleware, profileHandler.Lookup)

	router.GET("/friendships", authMiddleware, friendshipHandler.List)
	router.GET("/friendships/accepted/:user_id", authMiddleware, friendshipHandler.GetAccepted)
	router.POST("/friendships", authMiddleware, friendshipHandler.Create)

	router.GET("/participants/me", authMiddleware, roomHandler.MyRoomIDs)
	router.GET("/rooms", authMiddleware, roomHandler.List)
	router.POST("/rooms", authMiddleware, roomHandler.Create)
	router.POST("/rooms/:room_id/touch", authMiddleware, roomHandler.Touch)
	router.DELETE("/rooms/:room_id/participants/me", authMiddleware, roomHandler.Leave)
	router.GET("/personas", authMiddleware, handlers.ListPersonas)

	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.List)
	router.POST("/rooms/:room_id/messages", authMiddleware, messageHandler.Create)

	router.GET("/ws/messages", feedWS.Handle)

	var maint handlers.Maintainer
	if cfg.DebugRoutes {
		pool, err := maintenance.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Warn("maintenance pool unavailable", zap.Error(err))
		} else {
			defer pool.Close()
			maint = maintenance.New(pool, maintenance.WithLogger(logger))
		}
	}
	handlers.RegisterDebugRoutes(router, auditor, maint, cfg.DebugRoutes)

	healthServer := grpcserver.NewHealthServer(database.PingContext, 0, logger)
	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}
	go func() {
		if err := healthServer.Serve(ctx, lis); err != nil {
			logger.Error("grpc health server error", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("listening", zap.String("addr", srv.Addr), zap.String("grpc_health", cfg.GRPCHealthAddr))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown error", zap.Error(err))
	}
	logger.Info("stopped")
	return serveErr
}
