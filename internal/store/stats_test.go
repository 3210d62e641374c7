package store

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestStatsProviderCountsUsersAndExpenses(t *testing.T) {
	users := &stubCountCollection{count: 12}
	expenses := &stubCountCollection{count: 340}

	provider := NewStatsProvider(users, expenses)

	ctx := context.Background()

	userCount, err := provider.CountUsers(ctx)
	if err != nil {
		t.Fatalf("expected user count to succeed, got error: %v", err)
	}
	if userCount != 12 {
		t.Fatalf("expected 12 users, got %d", userCount)
	}

	expenseCount, err := provider.CountExpenses(ctx)
	if err != nil {
		t.Fatalf("expected expense count to succeed, got error: %v", err)
	}
	if expenseCount != 340 {
		t.Fatalf("expected 340 expenses, got %d", expenseCount)
	}
	if expenses.calls != 1 {
		t.Fatalf("expected expenses count to be called once, got %d", expenses.calls)
	}
}

func TestStatsProviderCountsPremiumWithFilter(t *testing.T) {
	users := &stubCountCollection{count: 3}
	provider := NewStatsProvider(users, &stubCountCollection{})

	count, err := provider.CountPremiumUsers(context.Background())
	if err != nil {
		t.Fatalf("expected premium count to succeed, got error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 premium users, got %d", count)
	}

	filter, ok := users.lastFilter.(bson.D)
	if !ok || len(filter) != 1 || filter[0].Key != "is_premium" || filter[0].Value != true {
		t.Fatalf("expected is_premium filter, got %v", users.lastFilter)
	}
}

func TestStatsProviderRequiresContext(t *testing.T) {
	provider := NewStatsProvider(&stubCountCollection{}, &stubCountCollection{})

	if _, err := provider.CountUsers(nil); err == nil {
		t.Fatalf("expected error for nil context")
	}
	if _, err := provider.CountExpenses(nil); err == nil {
		t.Fatalf("expected error for nil context")
	}
}

func TestStatsProviderRequiresInitialization(t *testing.T) {
	var provider *StatsProvider

	if _, err := provider.CountUsers(context.Background()); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := provider.CountExpenses(context.Background()); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}

func TestStatsProviderPropagatesErrors(t *testing.T) {
	expectedErr := errors.New("count failed")
	provider := NewStatsProvider(
		&stubCountCollection{err: expectedErr},
		&stubCountCollection{err: expectedErr},
	)

	if _, err := provider.CountUsers(context.Background()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected wrapped error from user count, got %v", err)
	}
	if _, err := provider.CountExpenses(context.Background()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected wrapped error from expense count, got %v", err)
	}
}

type stubCountCollection struct {
	count      int64
	err        error
	calls      int
	lastFilter interface{}
}

func (s *stubCountCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	s.calls++
	s.lastFilter = filter
	return s.count, s.err
}
