package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/config"
	"triconnect/internal/mqhandler"
	"triconnect/internal/repository"
	"triconnect/internal/service/fanout"
	"triconnect/internal/service/reminder"
	"triconnect/pkg/db"
	"triconnect/pkg/logger"
	"triconnect/pkg/mq"
	"triconnect/pkg/redis"
	"triconnect/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting notifier...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis（去重快速路径 + 重试计数）
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	dedupTTL := time.Duration(cfg.Reminder.DedupTTLHours) * time.Hour
	deduper := util.NewDeduperWithLogger(rdb, dedupTTL, log)
	retryCounter := util.NewRetryCounter(rdb, 24*time.Hour)

	// Repositories
	userRepo := repository.NewUserRepository(dbConn)
	eventRepo := repository.NewEventRepository(dbConn, log)
	registrationRepo := repository.NewRegistrationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	// Delivery channels
	emailSender := channel.NewSMTPEmailSender(cfg.SMTP, log)
	smsSender := channel.NewTwilioSMSSender(cfg.SMS, log)

	// Fan-out service + MQ handler
	fanoutService := fanout.NewService(userRepo, notificationRepo, emailSender, log).
		WithMaxConcurrency(cfg.Fanout.MaxConcurrency)
	eventCreatedHandler := mqhandler.NewEventCreatedHandler(
		eventRepo, fanoutService, deduper, retryCounter, 3, log,
	)

	// MQ Consumer for event.created
	log.Info("Initializing MQ consumer for event.created...",
		zap.String("queue", "event.created.q"),
		zap.String("routing_key", "event.created"),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, "event.created.q", "event.created", log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	consumer.SetHandler(eventCreatedHandler.Handle)

	go func() {
		log.Info("Starting event.created consumer...")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Event consumer failed", zap.Error(err))
		}
	}()

	// Reminder scanner
	scanner := reminder.NewScanner(
		eventRepo, registrationRepo, userRepo, notificationRepo,
		emailSender, smsSender, log,
	).
		WithWindow(time.Duration(cfg.Reminder.WindowHours) * time.Hour).
		WithDeduper(deduper, util.FormatReminderKey)

	scanCtx, scanCancel := context.WithCancel(context.Background())
	go scanner.Start(scanCtx)

	// HTTP server（健康检查 + 指标）
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := dbConn.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		if !consumer.IsRunning() {
			c.JSON(500, gin.H{"status": "consumer_not_running"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	port := cfg.Server.Port
	if port == "" {
		port = ":8081"
	}
	srv := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("notifier is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notifier gracefully...")

	scanCancel()
	consumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
}
