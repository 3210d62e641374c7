// Package user provides first-contact registration of user profiles.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/logging"
)

// Default profile settings used when the registrar is built without overrides.
const (
	DefaultTimezone = "UTC-6"
	DefaultCurrency = "USD"
)

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Identity is what the transport knows about the sender of an event.
type Identity struct {
	UserID       int64
	BotID        int64
	Username     string
	FirstName    string
	LanguageCode string
}

// Defaults seeds new profiles.
type Defaults struct {
	Timezone string
	Currency string
}

// Registrar makes sure a profile exists before any other handler touches it.
// Existing profiles are never modified.
type Registrar struct {
	users    userCollection
	defaults Defaults
	logger   *logrus.Entry
	now      func() time.Time
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, defaults Defaults, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}
	if defaults.Timezone == "" {
		defaults.Timezone = DefaultTimezone
	}
	if defaults.Currency == "" {
		defaults.Currency = DefaultCurrency
	}

	return &Registrar{
		users:    users,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// EnsureProfile creates the profile with default categories and settings on
// first contact. It reports whether a new profile was created.
func (r *Registrar) EnsureProfile(ctx context.Context, identity Identity) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if identity.UserID == 0 {
		return false, errors.New("user id is required")
	}

	key := domain.ProfileKey{UserID: identity.UserID, BotID: identity.BotID}
	now := r.now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":                 identity.UserID,
			"bot_id":                  identity.BotID,
			"username":                identity.Username,
			"first_name":              identity.FirstName,
			"language_code":           identity.LanguageCode,
			"joined_at":               now,
			"conversation_status":     domain.StatusRegular,
			"categories":              domain.NewDefaultCategoryMap(),
			"daily_requests":          int64(0),
			"total_requests":          int64(0),
			"last_active":             now,
			"is_premium":              false,
			"end_premium":             int64(0),
			"premium_plan":            "",
			"artificial_intelligence": false,
			"daily_reminders":         false,
			"timezone":                r.defaults.Timezone,
			"currency":                r.defaults.Currency,
		},
	}

	result, err := r.users.UpdateOne(ctx,
		domain.ProfileFilter(key),
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure profile: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "user_registered",
			"user_id": identity.UserID,
			"bot_id":  identity.BotID,
		}).Info("registered new user")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_seen",
		"user_id": identity.UserID,
	}).Debug("profile already registered")

	return false, nil
}
