package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tidynest/selenas/internal/alerting"
	"github.com/tidynest/selenas/internal/api/router"
	"github.com/tidynest/selenas/internal/booking"
	"github.com/tidynest/selenas/internal/config"
	"github.com/tidynest/selenas/internal/consent"
	"github.com/tidynest/selenas/internal/conversation"
	"github.com/tidynest/selenas/internal/directory"
	"github.com/tidynest/selenas/internal/engine/customer"
	"github.com/tidynest/selenas/internal/engine/prospect"
	"github.com/tidynest/selenas/internal/http/handlers"
	"github.com/tidynest/selenas/internal/messaging"
	"github.com/tidynest/selenas/internal/observability/metrics"
	"github.com/tidynest/selenas/internal/session"
	messagingworker "github.com/tidynest/selenas/internal/worker/messaging"
	"github.com/tidynest/selenas/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}

	var alerter alerting.Alerter
	if cfg.SendGridAPIKey != "" && cfg.AlertEmail != "" {
		alerter = alerting.NewEmailAlerter(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail, cfg.AlertEmail, logger)
	} else {
		alerter = alerting.NewLogAlerter(logger)
	}

	var links booking.LinkIssuer
	if cfg.BookingLinkToken != "" {
		links = booking.NewHTTPIssuer(cfg.BookingLinkURL, cfg.BookingLinkToken)
	} else {
		links = booking.NewStaticIssuer(cfg.BookingLinkURL)
	}

	convMetrics := metrics.NewConversationMetrics(nil)
	messages := messaging.NewStore(pool)
	sender := messaging.NewHTTPSender(cfg.SMSAPIBaseURL, cfg.SMSAPIKey, cfg.SMSFromNumber, logger).
		WithMaxAttempts(cfg.SendMaxAttempts).
		WithBaseDelay(cfg.SendBaseDelay)
	sessions := session.NewStore(redisClient, cfg.SessionTTL)
	dir := directory.NewPostgresDirectory(pool)

	convRouter := conversation.NewRouter(conversation.Config{
		Messages: messages,
		Sender:   sender,
		Gate:     consent.NewGate(dir, sessions, logger),
		Sessions: sessions,
		Dir:      dir,
		Prospect: prospect.New(links, logger),
		Customer: customer.New(logger),
		Alerter:  alerter,
		Metrics:  convMetrics,
		Logger:   logger,
	})

	retrySender := messagingworker.NewRetrySender(messages, sender, dir, alerter, logger, cfg.RetryInterval, cfg.RetryMaxAttempts)
	go retrySender.Run(ctx)

	handler := router.New(router.Deps{
		Webhooks: handlers.NewWebhookHandler(convRouter, messages, convMetrics, cfg.WebhookSecret, logger),
		Admin:    handlers.NewAdminHandler(messages, cfg.AdminToken, logger),
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
