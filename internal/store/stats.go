package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

var premiumFilter = bson.D{{Key: "is_premium", Value: true}}

// StatsProvider backs the admin usage report.
type StatsProvider struct {
	users    countCollection
	expenses countCollection
}

func NewStatsProvider(users, expenses countCollection) *StatsProvider {
	return &StatsProvider{users: users, expenses: expenses}
}

// CountUsers counts registered profiles.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	return p.count(ctx, "users", p.usersColl(), bson.D{})
}

// CountPremiumUsers counts profiles with a paid upgrade.
func (p *StatsProvider) CountPremiumUsers(ctx context.Context) (int64, error) {
	return p.count(ctx, "premium users", p.usersColl(), premiumFilter)
}

// CountExpenses counts ledger entries across all users.
func (p *StatsProvider) CountExpenses(ctx context.Context) (int64, error) {
	var coll countCollection
	if p != nil {
		coll = p.expenses
	}
	return p.count(ctx, "expenses", coll, bson.D{})
}

func (p *StatsProvider) usersColl() countCollection {
	if p == nil {
		return nil
	}
	return p.users
}

func (p *StatsProvider) count(ctx context.Context, what string, coll countCollection, filter bson.D) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || coll == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}
	return n, nil
}
