// Package logging provides structured logging setup for the bot.
package logging

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/config"
)

const serviceName = "expense-tracker-bot"

var baseLogger *logrus.Entry

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

// Context carries the identifiers of the event being handled. Zero values are
// left out of the entry.
type Context struct {
	UserID int64
	BotID  int64
	ChatID int64
	Event  string
}

// Setup configures the global logger from the runtime configuration. Secrets
// from the configuration are masked in every entry.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	baseLogger = build(cfg.AppEnv, level, cfg.TelegramToken, cfg.OpenAIKey, cfg.WebhookSecret)
	return baseLogger, nil
}

// Logger returns the configured base logger, initializing a production
// default if Setup has not run yet (early boot errors).
func Logger() *logrus.Entry {
	if baseLogger == nil {
		baseLogger = build(config.DefaultAppEnv, logrus.InfoLevel)
	}
	return baseLogger
}

// WithContext returns the base logger enriched with the event identifiers.
func WithContext(ctx Context) *logrus.Entry {
	return Enrich(Logger(), ctx)
}

// Enrich attaches the event identifiers to an existing entry.
func Enrich(entry *logrus.Entry, ctx Context) *logrus.Entry {
	if entry == nil {
		entry = Logger()
	}
	fields := ctx.fields()
	if len(fields) == 0 {
		return entry
	}
	return entry.WithFields(fields)
}

// Info logs an informational message with optional structured fields.
func Info(msg string, fields Fields) {
	Logger().WithFields(fields).Info(msg)
}

// Warn logs a warning message with optional structured fields.
func Warn(msg string, fields Fields) {
	Logger().WithFields(fields).Warn(msg)
}

// Error logs an error message with optional structured fields.
func Error(msg string, fields Fields) {
	Logger().WithFields(fields).Error(msg)
}

func build(appEnv string, level logrus.Level, secrets ...string) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(formatterForEnv(appEnv))
	if hook := NewRedactHook(secrets...); hook != nil {
		logger.AddHook(hook)
	}

	return logger.WithFields(Fields{
		"service": serviceName,
		"env":     appEnv,
	})
}

func (ctx Context) fields() Fields {
	fields := Fields{}
	if ctx.UserID != 0 {
		fields["user_id"] = ctx.UserID
	}
	if ctx.BotID != 0 {
		fields["bot_id"] = ctx.BotID
	}
	if ctx.ChatID != 0 {
		fields["chat_id"] = ctx.ChatID
	}
	if event := strings.TrimSpace(ctx.Event); event != "" {
		fields["event"] = event
	}
	return fields
}

func formatterForEnv(appEnv string) logrus.Formatter {
	fieldMap := logrus.FieldMap{
		logrus.FieldKeyTime:  "ts",
		logrus.FieldKeyMsg:   "msg",
		logrus.FieldKeyLevel: "level",
	}

	if appEnv == config.EnvDevelopment {
		return &logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               fieldMap,
			DisableLevelTruncation: true,
		}
	}

	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        fieldMap,
	}
}

func parseLevel(value string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}

// resetLogger clears the cached logger; used in tests.
func resetLogger() {
	baseLogger = nil
}
