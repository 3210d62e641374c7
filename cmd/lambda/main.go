package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"expense_tracker_bot/internal/app"
	"expense_tracker_bot/internal/config"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/telegram"
	"expense_tracker_bot/internal/webhook"
)

// The Mongo connection and bot client are built once per container and
// reused across invocations.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	bot, err := app.New(context.Background(), cfg, logger, telegram.WithWebhookMode())
	if err != nil {
		logger.WithError(err).Error("startup error")
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}

	if cfg.WebhookSecret == "" {
		logger.WithField("event", "webhook_unsecured").Warn("WEBHOOK_SECRET is not set; accepting unauthenticated deliveries")
	}

	handler := webhook.NewHandler(bot.Telegram, cfg.WebhookSecret, logger)
	logger.WithField("event", "lambda_ready").Info("lambda handler initialized")

	lambda.Start(handler.Handle)
}
