// Package store owns the MongoDB connection and the profile and ledger
// collections.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"expense_tracker_bot/internal/config"
)

const (
	CollectionUsers    = "users"
	CollectionExpenses = "expenses"
)

const (
	appName                = "expense-tracker-bot"
	serverSelectionTimeout = 5 * time.Second
	// Lambda containers serve one update at a time.
	maxPoolSize = 10
)

var errNotInitialized = errors.New("store manager is not initialized")

type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// collectionIndexes pairs a collection with the indexes it needs.
type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

// indexPlan is applied in order; profiles first so registration works even if
// the ledger indexes fail.
func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{
			collection: CollectionUsers,
			models: []mongo.IndexModel{
				keyIndex("user_bot_unique", true, "user_id", "bot_id"),
			},
		},
		{
			collection: CollectionExpenses,
			models: []mongo.IndexModel{
				keyIndex("user_sort_key_unique", true, "user_id", "sort_key"),
				keyIndex("user_date", false, "user_id", "date"),
			},
		},
	}
}

func keyIndex(name string, unique bool, fields ...string) mongo.IndexModel {
	keys := make(bson.D, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, bson.E{Key: field, Value: 1})
	}

	opts := options.Index().SetName(name)
	if unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func clientOptions(cfg config.Config) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName(appName).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetMaxPoolSize(maxPoolSize)
}

// Manager holds the client and the bot database.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager connects and pings the primary. The client is released when the
// ping fails.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if cfg.MongoDB == "" {
		return nil, errors.New("mongo database name is required")
	}

	client, err := connectMongo(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{client: client, db: client.Database(cfg.MongoDB)}, nil
}

// Users holds one profile document per (user, bot) pair.
func (m *Manager) Users() *mongo.Collection {
	return m.db.Collection(CollectionUsers)
}

// Expenses holds one document per ledger entry.
func (m *Manager) Expenses() *mongo.Collection {
	return m.db.Collection(CollectionExpenses)
}

// Ping is used by the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.client == nil {
		return errNotInitialized
	}

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// EnsureBaseIndexes creates the profile and ledger indexes, stopping at the
// first failure. Existing indexes with the same definition are left alone.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errNotInitialized
	}

	for _, plan := range indexPlan() {
		if _, err := createIndexes(ctx, m.db.Collection(plan.collection), plan.models); err != nil {
			return fmt.Errorf("create %s indexes: %w", plan.collection, err)
		}
	}
	return nil
}

// Close disconnects the client. Closing a nil manager is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return m.client.Disconnect(ctx)
}
