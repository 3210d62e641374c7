// Package telegram hosts the Telegram client: it turns updates into events,
// hands them to the dispatcher and renders the responses.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/config"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/logging"
)

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	SendInvoice(ctx context.Context, params *bot.SendInvoiceParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	AnswerPreCheckoutQuery(ctx context.Context, params *bot.AnswerPreCheckoutQueryParams) (bool, error)
}

// Router handles one classified event.
type Router interface {
	Dispatch(ctx context.Context, ev event.Event) event.Response
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
		"pre_checkout_query",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Option customizes client construction.
type Option func(*clientOptions)

type clientOptions struct {
	webhook bool
}

// WithWebhookMode skips the startup getMe call. Used when updates arrive
// through an HTTP entrypoint instead of long polling.
func WithWebhookMode() Option {
	return func(o *clientOptions) {
		o.webhook = true
	}
}

// Client wraps the Telegram bot instance and logging dependencies.
type Client struct {
	api    botAPI
	botID  int64
	router Router
	logger *logrus.Entry
}

// NewClient initializes the Telegram bot and its update handlers.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		botID:  botIDFromToken(cfg.TelegramToken),
		logger: logger,
	}

	botOptions := []bot.Option{
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			c.HandleUpdate(ctx, update)
		}),
		bot.WithErrorsHandler(errorHandler(logger)),
	}
	if o.webhook {
		botOptions = append(botOptions, bot.WithSkipGetMe())
	}

	tgBot, err := createBot(cfg.TelegramToken, botOptions...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}
	c.api = tgBot

	return c, nil
}

// Route sets the event router. It must be called before Start or
// HandleUpdate.
func (c *Client) Route(router Router) {
	c.router = router
}

// BotID is the numeric id encoded in the bot token.
func (c *Client) BotID() int64 {
	return c.botID
}

// SendMessage exposes the underlying API for out-of-band messages such as
// owner fault reports.
func (c *Client) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("telegram client is not initialized")
	}
	return c.api.SendMessage(ctx, params)
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.api.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// HandleUpdate classifies one update, dispatches it and renders the
// response. Updates the bot does not react to are logged and skipped.
func (c *Client) HandleUpdate(ctx context.Context, update *models.Update) {
	if update == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ev, ok := ToEvent(update, c.botID)
	if !ok {
		c.logger.WithFields(logging.Fields{
			"event":       "telegram_update_ignored",
			"update_type": updateType(update),
		}).Debug("ignoring unsupported telegram update")
		return
	}

	if c.router == nil {
		c.logger.WithField("event", "telegram_unrouted").Error("no router configured for telegram client")
		return
	}

	resp := c.router.Dispatch(ctx, ev)
	c.render(ctx, ev, resp)
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

// botIDFromToken reads the "<id>:<secret>" prefix of a bot token.
func botIDFromToken(token string) int64 {
	prefix, _, found := strings.Cut(strings.TrimSpace(token), ":")
	if !found {
		return 0
	}
	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
