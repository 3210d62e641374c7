package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrProfileNotFound is returned when no profile exists for the key.
var ErrProfileNotFound = errors.New("profile not found")

type profileCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// ProfileRepository reads and updates user profiles in MongoDB. Creation is
// handled by the user registrar so every write here targets an existing row.
type ProfileRepository struct {
	collection profileCollection
}

// NewProfileRepository constructs a ProfileRepository.
func NewProfileRepository(collection profileCollection) *ProfileRepository {
	return &ProfileRepository{collection: collection}
}

// ProfileFilter is the lookup filter for a profile key.
func ProfileFilter(key ProfileKey) bson.M {
	return bson.M{"user_id": key.UserID, "bot_id": key.BotID}
}

// Get fetches the profile for key.
func (r *ProfileRepository) Get(ctx context.Context, key ProfileKey) (UserProfile, error) {
	if err := r.check(ctx, key); err != nil {
		return UserProfile{}, err
	}

	result := r.collection.FindOne(ctx, ProfileFilter(key))
	if result == nil {
		return UserProfile{}, errors.New("find profile returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return UserProfile{}, ErrProfileNotFound
		}
		return UserProfile{}, fmt.Errorf("find profile: %w", err)
	}

	var profile UserProfile
	if err := result.Decode(&profile); err != nil {
		return UserProfile{}, fmt.Errorf("decode profile: %w", err)
	}

	return profile, nil
}

// SaveCounters writes the request counters and activity timestamp.
func (r *ProfileRepository) SaveCounters(ctx context.Context, key ProfileKey, daily, total int64, lastActive time.Time) error {
	return r.set(ctx, key, "save counters", bson.M{
		"daily_requests": daily,
		"total_requests": total,
		"last_active":    lastActive.UTC().Truncate(time.Millisecond),
	})
}

// SetStatus changes the conversation status.
func (r *ProfileRepository) SetStatus(ctx context.Context, key ProfileKey, status ConversationStatus) error {
	return r.set(ctx, key, "set status", bson.M{"conversation_status": status})
}

// SetPending stores the pending action, replacing any previous one.
func (r *ProfileRepository) SetPending(ctx context.Context, key ProfileKey, pending PendingAction) error {
	return r.set(ctx, key, "set pending action", bson.M{"pending_action": pending})
}

// ClearPending removes the pending action.
func (r *ProfileRepository) ClearPending(ctx context.Context, key ProfileKey) error {
	return r.update(ctx, key, "clear pending action", bson.M{"$unset": bson.M{"pending_action": ""}})
}

// Reset returns the conversation to REGULAR and drops any pending action.
func (r *ProfileRepository) Reset(ctx context.Context, key ProfileKey) error {
	return r.update(ctx, key, "reset conversation", bson.M{
		"$set":   bson.M{"conversation_status": StatusRegular},
		"$unset": bson.M{"pending_action": ""},
	})
}

// SetCategories replaces the whole category map.
func (r *ProfileRepository) SetCategories(ctx context.Context, key ProfileKey, categories CategoryMap) error {
	return r.set(ctx, key, "set categories", bson.M{"categories": categories})
}

// SetCategory writes a single category entry.
func (r *ProfileRepository) SetCategory(ctx context.Context, key ProfileKey, id int, category Category) error {
	return r.set(ctx, key, "set category", bson.M{"categories." + CategoryKey(id): category})
}

// SetPremium activates a plan until end.
func (r *ProfileRepository) SetPremium(ctx context.Context, key ProfileKey, plan string, end time.Time) error {
	return r.set(ctx, key, "set premium", bson.M{
		"is_premium":   true,
		"end_premium":  end.Unix(),
		"premium_plan": plan,
	})
}

// ClearPremium drops an expired subscription.
func (r *ProfileRepository) ClearPremium(ctx context.Context, key ProfileKey) error {
	return r.set(ctx, key, "clear premium", bson.M{
		"is_premium":   false,
		"end_premium":  int64(0),
		"premium_plan": "",
	})
}

// SetAI toggles AI categorization.
func (r *ProfileRepository) SetAI(ctx context.Context, key ProfileKey, enabled bool) error {
	return r.set(ctx, key, "set ai", bson.M{"artificial_intelligence": enabled})
}

// SetReminders opts the profile in or out of the daily reminder.
func (r *ProfileRepository) SetReminders(ctx context.Context, key ProfileKey, enabled bool) error {
	return r.set(ctx, key, "set reminders", bson.M{"daily_reminders": enabled})
}

// SetTimezone stores a "UTC±H" offset.
func (r *ProfileRepository) SetTimezone(ctx context.Context, key ProfileKey, timezone string) error {
	return r.set(ctx, key, "set timezone", bson.M{"timezone": timezone})
}

func (r *ProfileRepository) set(ctx context.Context, key ProfileKey, op string, fields bson.M) error {
	return r.update(ctx, key, op, bson.M{"$set": fields})
}

func (r *ProfileRepository) update(ctx context.Context, key ProfileKey, op string, update bson.M) error {
	if err := r.check(ctx, key); err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx, ProfileFilter(key), update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if result != nil && result.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, ErrProfileNotFound)
	}

	return nil
}

func (r *ProfileRepository) check(ctx context.Context, key ProfileKey) error {
	if r == nil || r.collection == nil {
		return errors.New("profile repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if key.UserID == 0 {
		return errors.New("user_id is required")
	}
	return nil
}
