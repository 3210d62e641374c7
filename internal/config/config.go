// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken   = "TELEGRAM_TOKEN"
	KeyBotOwner        = "BOT_OWNER"
	KeyMongoURI        = "MONGO_URI"
	KeyMongoDB         = "MONGO_DB"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyHTTPPort        = "HTTP_PORT"
	KeyAdmins          = "ADMINS"
	KeyRequestsPerDay  = "REQUESTS_PER_DAY"
	KeyWarnMargin      = "WARN_MARGIN"
	KeyOpenAIKey       = "OPENAI_API_KEY"
	KeyOpenAIModel     = "OPENAI_MODEL"
	KeyAITimeout       = "AI_TIMEOUT"
	KeyDefaultTimezone = "DEFAULT_TIMEZONE"
	KeyDefaultCurrency = "DEFAULT_CURRENCY"
	KeyWebhookSecret   = "WEBHOOK_SECRET"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultHTTPPort        = 8080
	DefaultRequestsPerDay  = 100
	DefaultWarnMargin      = 5
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultAITimeout       = 4 * time.Second
	DefaultTimezone        = "UTC-6"
	DefaultCurrency        = "USD"
	DefaultMongoDBProd     = "expense_bot"
	DefaultMongoDBDev      = "expense_bot_dev"
	redactedSuffix         = "...redacted"
	redactedVisiblePrefix  = 4
	mongoSchemeStandard    = "mongodb"
	mongoSchemeSeedlist    = "mongodb+srv"
	adminListSeparator     = ","
	maxConfiguredAITimeout = 30 * time.Second
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Required:    true,
		Description: "Operator Telegram user_id; receives unexpected error reports.",
		Notes:       "The owner is always treated as an admin.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeyAdmins,
		Example:     "111,222",
		Description: "Comma-separated admin user_ids; admins get a doubled request allowance and admin commands.",
	},
	{
		Key:         KeyRequestsPerDay,
		Example:     strconv.Itoa(DefaultRequestsPerDay),
		Default:     strconv.Itoa(DefaultRequestsPerDay),
		Description: "Maximum handled requests per user per UTC day.",
	},
	{
		Key:         KeyWarnMargin,
		Example:     strconv.Itoa(DefaultWarnMargin),
		Default:     strconv.Itoa(DefaultWarnMargin),
		Description: "Number of over-limit requests that still receive a limit notice.",
	},
	{
		Key:         KeyOpenAIKey,
		Example:     "sk-...",
		Description: "OpenAI API key for automatic categorization.",
		Notes:       "When unset, automatic categorization always falls back to the Other category.",
	},
	{
		Key:         KeyOpenAIModel,
		Example:     DefaultOpenAIModel,
		Default:     DefaultOpenAIModel,
		Description: "Chat model used for automatic categorization.",
	},
	{
		Key:         KeyAITimeout,
		Example:     DefaultAITimeout.String(),
		Default:     DefaultAITimeout.String(),
		Description: "Timeout for a single categorization call (no retries).",
	},
	{
		Key:         KeyDefaultTimezone,
		Example:     DefaultTimezone,
		Default:     DefaultTimezone,
		Description: "UTC offset assigned to new users (UTC±H).",
	},
	{
		Key:         KeyDefaultCurrency,
		Example:     DefaultCurrency,
		Default:     DefaultCurrency,
		Description: "Currency code assigned to new users.",
	},
	{
		Key:         KeyWebhookSecret,
		Example:     "long-random-string",
		Description: "Secret token Telegram echoes on webhook deliveries.",
		Notes:       "Only used by the Lambda entrypoint; requests with a different token are rejected.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken   string
	BotOwnerID      int64
	MongoURI        string
	MongoDB         string
	AppEnv          string
	LogLevel        string
	HTTPPort        int
	AdminIDs        []int64
	RequestsPerDay  int
	WarnMargin      int
	OpenAIKey       string
	OpenAIModel     string
	AITimeout       time.Duration
	DefaultTimezone string
	DefaultCurrency string
	WebhookSecret   string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:   strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:        strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:         strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
		RequestsPerDay:  DefaultRequestsPerDay,
		WarnMargin:      DefaultWarnMargin,
		OpenAIKey:       strings.TrimSpace(os.Getenv(KeyOpenAIKey)),
		OpenAIModel:     firstNonEmpty(os.Getenv(KeyOpenAIModel), DefaultOpenAIModel),
		AITimeout:       DefaultAITimeout,
		DefaultTimezone: firstNonEmpty(os.Getenv(KeyDefaultTimezone), DefaultTimezone),
		DefaultCurrency: strings.ToUpper(firstNonEmpty(os.Getenv(KeyDefaultCurrency), DefaultCurrency)),
		WebhookSecret:   strings.TrimSpace(os.Getenv(KeyWebhookSecret)),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	ownerRaw := strings.TrimSpace(os.Getenv(KeyBotOwner))
	if ownerRaw == "" {
		missing = append(missing, KeyBotOwner)
	} else {
		ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
		}
		cfg.BotOwnerID = ownerID
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if err := validateMongoURI(cfg.MongoURI); err != nil {
		return Config{}, err
	}

	if cfg.HTTPPort, err = positiveInt(KeyHTTPPort, DefaultHTTPPort); err != nil {
		return Config{}, err
	}
	if cfg.RequestsPerDay, err = positiveInt(KeyRequestsPerDay, DefaultRequestsPerDay); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(os.Getenv(KeyWarnMargin)); raw != "" {
		margin, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyWarnMargin, parseErr)
		}
		if margin < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", KeyWarnMargin)
		}
		cfg.WarnMargin = margin
	}

	if raw := strings.TrimSpace(os.Getenv(KeyAITimeout)); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAITimeout, parseErr)
		}
		if timeout <= 0 || timeout > maxConfiguredAITimeout {
			return Config{}, fmt.Errorf("%s must be between 0 and %s", KeyAITimeout, maxConfiguredAITimeout)
		}
		cfg.AITimeout = timeout
	}

	admins, err := parseAdmins(os.Getenv(KeyAdmins))
	if err != nil {
		return Config{}, err
	}
	cfg.AdminIDs = admins

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// AdminSet returns the admin identities including the bot owner.
func (c Config) AdminSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(c.AdminIDs)+1)
	for _, id := range c.AdminIDs {
		set[id] = struct{}{}
	}
	if c.BotOwnerID != 0 {
		set[c.BotOwnerID] = struct{}{}
	}
	return set
}

// FormatRedacted renders the configuration for --config-only output with
// secrets masked.
func FormatRedacted(c Config) string {
	admins := make([]string, 0, len(c.AdminIDs))
	for _, id := range c.AdminIDs {
		admins = append(admins, strconv.FormatInt(id, 10))
	}

	lines := []string{
		"telegram_token: " + redactSecret(c.TelegramToken),
		"bot_owner: " + strconv.FormatInt(c.BotOwnerID, 10),
		"mongo_uri: " + redactMongoURI(c.MongoURI),
		"mongo_db: " + c.MongoDB,
		"app_env: " + c.AppEnv,
		"log_level: " + c.LogLevel,
		"http_port: " + strconv.Itoa(c.HTTPPort),
		"admins: " + strings.Join(admins, adminListSeparator),
		"requests_per_day: " + strconv.Itoa(c.RequestsPerDay),
		"warn_margin: " + strconv.Itoa(c.WarnMargin),
		"openai_api_key: " + redactSecret(c.OpenAIKey),
		"openai_model: " + c.OpenAIModel,
		"ai_timeout: " + c.AITimeout.String(),
		"default_timezone: " + c.DefaultTimezone,
		"default_currency: " + c.DefaultCurrency,
		"webhook_secret: " + redactSecret(c.WebhookSecret),
	}

	return strings.Join(lines, "\n")
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateMongoURI(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", KeyMongoURI, err)
	}
	if parsed.Scheme != mongoSchemeStandard && parsed.Scheme != mongoSchemeSeedlist {
		return fmt.Errorf("invalid %s: scheme must be %q or %q", KeyMongoURI, mongoSchemeStandard, mongoSchemeSeedlist)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: host is required", KeyMongoURI)
	}
	return nil
}

func positiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return value, nil
}

func parseAdmins(raw string) ([]int64, error) {
	seen := make(map[int64]struct{})
	for _, part := range strings.Split(raw, adminListSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", KeyAdmins, part, err)
		}
		seen[id] = struct{}{}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func redactSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= redactedVisiblePrefix {
		return redactedSuffix
	}
	return value[:redactedVisiblePrefix] + redactedSuffix
}

func redactMongoURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
