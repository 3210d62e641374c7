package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"expense_tracker_bot/internal/app"
	"expense_tracker_bot/internal/config"
	"expense_tracker_bot/internal/health"
	"expense_tracker_bot/internal/logging"
)

const (
	mongoDisconnectTimeout = 5 * time.Second
	healthShutdownTimeout  = 5 * time.Second
)

var processStart = time.Now()

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
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

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":          "startup",
		"mongo_db":       cfg.MongoDB,
		"requests_daily": cfg.RequestsPerDay,
		"ai_enabled":     cfg.OpenAIKey != "",
	}).Info("configuration loaded")

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := app.New(signalCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("startup error")
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}

	healthServer := health.NewServer(health.Options{
		Port:    cfg.HTTPPort,
		Store:   bot.Store,
		Started: processStart,
		Logger:  logger,
	})

	g, ctx := errgroup.WithContext(signalCtx)

	g.Go(func() error {
		bot.Telegram.Start(ctx)
		if ctx.Err() == nil {
			return errors.New("telegram polling stopped before shutdown")
		}
		return nil
	})

	g.Go(healthServer.ListenAndServe)

	g.Go(func() error {
		<-ctx.Done()
		logger.WithField("event", "shutdown_signal").Info("stopping telegram polling and health server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("service stopped with error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := bot.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
