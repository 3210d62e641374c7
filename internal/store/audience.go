package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expense_tracker_bot/internal/domain"
)

const audienceBatchSize = 100

type findCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// AudienceFilter selects the profiles a broadcast goes to.
type AudienceFilter struct {
	BotID         int64
	RemindersOnly bool
}

func (f AudienceFilter) query() bson.M {
	query := bson.M{"bot_id": f.BotID}
	if f.RemindersOnly {
		query["daily_reminders"] = true
	}
	return query
}

// Audience streams profiles out of the users collection for scheduled
// broadcasts.
type Audience struct {
	users findCollection
}

func NewAudience(users findCollection) *Audience {
	return &Audience{users: users}
}

// ForEach calls fn for every matching profile in user id order. Iteration
// stops at the first error returned by fn.
func (a *Audience) ForEach(ctx context.Context, filter AudienceFilter, fn func(domain.UserProfile) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if a == nil || a.users == nil {
		return errors.New("audience is not initialized")
	}
	if fn == nil {
		return errors.New("callback is required")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "user_id", Value: 1}}).
		SetBatchSize(audienceBatchSize)

	cursor, err := a.users.Find(ctx, filter.query(), opts)
	if err != nil {
		return fmt.Errorf("find audience: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var profile domain.UserProfile
		if err := cursor.Decode(&profile); err != nil {
			return fmt.Errorf("decode audience profile: %w", err)
		}
		if err := fn(profile); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate audience: %w", err)
	}
	return nil
}
