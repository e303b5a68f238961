package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/config"
	"triconnect/internal/handler"
	"triconnect/internal/httpserver"
	"triconnect/internal/repository"
	"triconnect/internal/service/auth"
	"triconnect/internal/service/event"
	"triconnect/internal/service/registration"
	"triconnect/pkg/db"
	"triconnect/pkg/logger"
	"triconnect/pkg/mq"
	"triconnect/pkg/outbox"
)

func main() {
	// Load config
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	eventRepo := repository.NewEventRepository(dbConn, logger)
	registrationRepo := repository.NewRegistrationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn, logger)

	// Init MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init delivery channels (未配置的渠道会优雅降级)
	emailSender := channel.NewSMTPEmailSender(cfg.SMTP, logger)
	smsSender := channel.NewTwilioSMSSender(cfg.SMS, logger)
	calendarClient := channel.NewGoogleCalendarClient(context.Background(), cfg.Calendar, logger)

	// Init Outbox
	outboxRepo := outbox.NewRepository(dbConn)
	replayService := outbox.NewReplayService(outboxRepo, publisher)

	// Init Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret, logger)
	eventService := event.NewService(dbConn, eventRepo, outboxRepo, logger)
	registrationService := registration.NewService(
		registrationRepo, eventRepo, userRepo, notificationRepo,
		emailSender, smsSender, calendarClient, logger,
	)

	// Init Handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	eventHandler := handler.NewEventHandler(eventService, logger)
	registrationHandler := handler.NewRegistrationHandler(registrationService, eventRepo, logger)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, logger)
	adminHandler := handler.NewAdminHandler(replayService, logger)

	// Init Outbox Dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger)
	go dispatcher.Start(context.Background())

	// Router
	router := httpserver.NewRouter(
		authHandler,
		eventHandler,
		registrationHandler,
		notificationHandler,
		adminHandler,
		cfg.JWT.Secret,
		dbConn,
	)

	// Start API server
	logger.Info("Starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
