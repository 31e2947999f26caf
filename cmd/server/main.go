// Package main runs the directory HTTP server: moderation API, admin feed over
// WebSocket, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/escena-local/directory/config"
	"github.com/escena-local/directory/internal/admin"
	"github.com/escena-local/directory/internal/auth"
	"github.com/escena-local/directory/internal/claims"
	"github.com/escena-local/directory/internal/contact"
	"github.com/escena-local/directory/internal/emaillogs"
	"github.com/escena-local/directory/internal/entities"
	"github.com/escena-local/directory/internal/events"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/internal/notify"
	"github.com/escena-local/directory/internal/realtime"
	"github.com/escena-local/directory/pkg/database"
	"github.com/escena-local/directory/pkg/queue"
	"github.com/escena-local/directory/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.Moderation.ContactInbox == "" {
		logger.Warn("CONTACT_INBOX_EMAIL not set; contact messages will fail")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Admin feed: counts fan out to every server instance through Redis
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	feed := realtime.NewFeed(hub, logger)

	// Stores
	authRepo := auth.NewRepository(pool)
	entityRepo := entities.NewRepository(pool)
	claimRepo := claims.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	emailLogsRepo := emaillogs.NewRepository(pool)

	svc, err := moderation.New(entityRepo, claimRepo, eventRepo, authRepo,
		moderation.WithLogger(logger),
		moderation.WithTransactor(database.NewTransactor(pool)),
		moderation.WithNotifier(notify.NewQueueNotifier(jobQueue)),
		moderation.WithObserver(feed),
		moderation.WithEventWindowDays(cfg.Moderation.EventWindowDays),
		moderation.WithContactInbox(cfg.Moderation.ContactInbox),
	)
	if err != nil {
		logger.Fatal("moderation service", zap.Error(err))
	}
	feed.Bind(svc.PendingCounts)

	router := newRouter(handlers{
		auth:     auth.NewHandler(authRepo, jwtService, logger),
		entities: entities.NewHandler(svc, logger),
		claims:   claims.NewHandler(svc, logger),
		events:   events.NewHandler(svc, logger),
		contact:  contact.NewHandler(svc, logger),
		admin:    admin.NewHandler(svc, logger),
		emails:   emaillogs.NewHandler(emailLogsRepo, logger),
		ws:       realtime.ServeWs(hub, feed, cfg.Server.Origins(), logger),
	}, jwtService, cfg.Server.Origins(), logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port),
			zap.Int("event_window_days", svc.EventWindowDays()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
