// Package app wires the bot's components together. Both entrypoints build
// the same graph; only the update source differs.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"expense_tracker_bot/internal/ai"
	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/config"
	"expense_tracker_bot/internal/conversation"
	"expense_tracker_bot/internal/dispatch"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/feature/owner"
	"expense_tracker_bot/internal/feature/user"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/premium"
	"expense_tracker_bot/internal/ratelimit"
	"expense_tracker_bot/internal/schedule"
	"expense_tracker_bot/internal/store"
	"expense_tracker_bot/internal/telegram"
	"expense_tracker_bot/internal/timeutil"
)

const (
	mongoConnectTimeout = 10 * time.Second
	mongoIndexTimeout   = 5 * time.Second
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// newNotifier is overridable for tests.
var newNotifier = func(sender messageSender, ownerID int64, logger *logrus.Entry) dispatch.Notifier {
	return owner.NewNotifier(sender, ownerID, logger)
}

// App holds the long-lived components.
type App struct {
	Store      *store.Manager
	Telegram   *telegram.Client
	Dispatcher *dispatch.Dispatcher
	Scheduler  *schedule.Runner
}

// New connects to Mongo, ensures indexes and assembles the event pipeline.
func New(ctx context.Context, cfg config.Config, logger *logrus.Entry, opts ...telegram.Option) (*App, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	manager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(ctx, mongoIndexTimeout)
	err = manager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		_ = manager.Close(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	client, err := telegram.NewClient(cfg, logger, opts...)
	if err != nil {
		_ = manager.Close(context.Background())
		return nil, err
	}

	built, err := pipeline(cfg, collections{users: manager.Users(), expenses: manager.Expenses()}, client, client.BotID(), logger)
	if err != nil {
		_ = manager.Close(context.Background())
		return nil, err
	}
	client.Route(built.dispatcher)

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	return &App{
		Store:      manager,
		Telegram:   client,
		Dispatcher: built.dispatcher,
		Scheduler:  built.scheduler,
	}, nil
}

type collections struct {
	users    *mongo.Collection
	expenses *mongo.Collection
}

type components struct {
	dispatcher *dispatch.Dispatcher
	scheduler  *schedule.Runner
}

func pipeline(cfg config.Config, colls collections, sender messageSender, botID int64, logger *logrus.Entry) (components, error) {
	clock := timeutil.Clock(timeutil.SystemClock)
	admins := cfg.AdminSet()

	profiles := domain.NewProfileRepository(colls.users)
	ledger := store.NewLedger(colls.expenses, logger)
	classifier := ai.NewClassifier(ai.Options{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.AITimeout,
	}, logger)

	machine, err := conversation.New(conversation.Deps{
		Profiles:   profiles,
		Ledger:     ledger,
		Categories: category.NewResolver(profiles, classifier, logger),
		Premium:    premium.NewService(profiles, admins, clock, logger),
		Stats:      store.NewStatsProvider(colls.users, colls.expenses),
		Clock:      clock,
		NewSortKey: timeutil.SortKey,
		Logger:     logger,
	})
	if err != nil {
		return components{}, fmt.Errorf("build conversation machine: %w", err)
	}

	var notifier dispatch.Notifier
	if cfg.BotOwnerID != 0 {
		notifier = newNotifier(sender, cfg.BotOwnerID, logger)
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Registrar: user.NewRegistrar(colls.users, user.Defaults{
			Timezone: cfg.DefaultTimezone,
			Currency: cfg.DefaultCurrency,
		}, logger),
		Profiles: profiles,
		Gate: ratelimit.New(profiles, ratelimit.Settings{
			MaxPerDay:  cfg.RequestsPerDay,
			WarnMargin: cfg.WarnMargin,
			Admins:     admins,
		}, clock, logger),
		Handler:  machine,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return components{}, fmt.Errorf("build dispatcher: %w", err)
	}

	scheduler, err := schedule.New(schedule.Options{
		BotID:    botID,
		Audience: store.NewAudience(colls.users),
		Reports:  machine,
		Sender:   sender,
		Logger:   logger,
	})
	if err != nil {
		return components{}, fmt.Errorf("build scheduler: %w", err)
	}

	return components{dispatcher: dispatcher, scheduler: scheduler}, nil
}

// Close releases the Mongo connection.
func (a *App) Close(ctx context.Context) error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close(ctx)
}
