package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"expense_tracker_bot/internal/app"
	"expense_tracker_bot/internal/config"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/schedule"
	"expense_tracker_bot/internal/telegram"
)

// Inside Lambda the job comes from the rule's constant input, e.g.
// {"job":"monthly_report"}; elsewhere from -job for cron or manual runs.
func main() {
	job := flag.String("job", "", "job to run once: monthly_report or daily_reminder")
	flag.Parse()

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

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(bot.Scheduler.Run)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, runErr := bot.Scheduler.Run(ctx, schedule.Trigger{Job: schedule.Job(*job)})
	stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := bot.Close(closeCtx); err != nil {
		logger.WithError(err).Warn("mongo disconnect failed")
	}
	cancel()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *job, runErr)
		os.Exit(1)
	}
	fmt.Printf("%s: %d recipients, %d sent, %d skipped, %d blocked, %d failed\n",
		result.Job, result.Recipients, result.Sent, result.Skipped, result.Blocked, result.Failed)
}
