package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"expense_tracker_bot/internal/domain"
)

func TestLimiterAllowsWarnsThenDrops(t *testing.T) {
	store := &fakeCounterStore{}
	now := time.Date(2024, 6, 10, 21, 15, 30, 0, time.UTC)
	limiter := New(store, Settings{MaxPerDay: 10, WarnMargin: 3}, fixedClock(now), nil)

	profile := domain.UserProfile{UserID: 1, BotID: 2, LastActive: now}
	counts := map[Decision]int{}

	for i := 0; i < 20; i++ {
		verdict, err := limiter.Check(context.Background(), profile)
		if err != nil {
			t.Fatalf("Check returned error: %v", err)
		}
		counts[verdict.Decision]++

		switch {
		case i < 10 && verdict.Decision != Allow:
			t.Fatalf("event %d: expected allow, got %s", i+1, verdict.Decision)
		case i >= 10 && i < 13 && verdict.Decision != Warn:
			t.Fatalf("event %d: expected warn, got %s", i+1, verdict.Decision)
		case i >= 13 && verdict.Decision != Drop:
			t.Fatalf("event %d: expected drop, got %s", i+1, verdict.Decision)
		}

		profile = store.apply(profile)
	}

	if counts[Allow] != 10 || counts[Warn] != 3 || counts[Drop] != 7 {
		t.Fatalf("unexpected decision counts %v", counts)
	}
	if profile.DailyRequests != 20 || profile.TotalRequests != 20 {
		t.Fatalf("expected every event to be counted, got daily=%d total=%d", profile.DailyRequests, profile.TotalRequests)
	}
}

func TestLimiterResetsOncePerUTCDay(t *testing.T) {
	store := &fakeCounterStore{}
	yesterday := time.Date(2024, 6, 9, 23, 59, 0, 0, time.UTC)
	today := time.Date(2024, 6, 10, 0, 1, 0, 0, time.UTC)
	limiter := New(store, Settings{MaxPerDay: 5, WarnMargin: 1}, fixedClock(today), nil)

	profile := domain.UserProfile{
		UserID:        1,
		DailyRequests: 500,
		TotalRequests: 900,
		LastActive:    yesterday,
	}

	verdict, err := limiter.Check(context.Background(), profile)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if verdict.Decision != Allow || verdict.Daily != 0 {
		t.Fatalf("expected reset counter to allow, got %+v", verdict)
	}
	if store.daily != 1 || store.total != 901 || !store.lastActive.Equal(today) {
		t.Fatalf("unexpected write daily=%d total=%d last=%v", store.daily, store.total, store.lastActive)
	}

	profile = store.apply(profile)
	verdict, err = limiter.Check(context.Background(), profile)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if verdict.Daily != 1 {
		t.Fatalf("expected counter to keep growing within the day, got %d", verdict.Daily)
	}
}

func TestLimiterReferenceDayIsUTC(t *testing.T) {
	store := &fakeCounterStore{}
	// 23:30 UTC-6 on the 9th is 05:30 UTC on the 10th.
	lastActive := time.Date(2024, 6, 9, 23, 30, 0, 0, time.FixedZone("UTC-6", -6*3600))
	now := time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC)
	limiter := New(store, Settings{MaxPerDay: 3}, fixedClock(now), nil)

	verdict, err := limiter.Check(context.Background(), domain.UserProfile{UserID: 1, DailyRequests: 3, LastActive: lastActive})
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if verdict.Decision != Drop {
		t.Fatalf("expected same UTC day to keep the counter, got %s", verdict.Decision)
	}
}

func TestLimiterDoublesAdminAllowance(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	limiter := New(&fakeCounterStore{}, Settings{
		MaxPerDay:  10,
		WarnMargin: 2,
		Admins:     map[int64]struct{}{7: {}},
	}, fixedClock(now), nil)

	if got := limiter.LimitFor(7); got != 20 {
		t.Fatalf("expected admin limit 20, got %d", got)
	}
	if got := limiter.LimitFor(8); got != 10 {
		t.Fatalf("expected user limit 10, got %d", got)
	}

	verdict, err := limiter.Check(context.Background(), domain.UserProfile{UserID: 7, DailyRequests: 15, LastActive: now})
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if verdict.Decision != Allow {
		t.Fatalf("expected admin to be allowed at 15, got %s", verdict.Decision)
	}
}

func TestLimiterReportsResetCountdown(t *testing.T) {
	now := time.Date(2024, 6, 10, 21, 15, 30, 0, time.UTC)
	hookLogger, hook := logtest.NewNullLogger()
	limiter := New(&fakeCounterStore{}, Settings{MaxPerDay: 1, WarnMargin: 5}, fixedClock(now), logrus.NewEntry(hookLogger))

	verdict, err := limiter.Check(context.Background(), domain.UserProfile{UserID: 1, DailyRequests: 1, LastActive: now})
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if verdict.Decision != Warn {
		t.Fatalf("expected warn, got %s", verdict.Decision)
	}

	text := WarningText(verdict.ResetIn)
	if !strings.Contains(text, "2 hours and 44 minutes") {
		t.Fatalf("expected countdown in warning, got %q", text)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Data["event"] != "rate_limited" || entry.Data["decision"] != "warn" {
		t.Fatalf("expected rate_limited log entry, got %+v", entry)
	}
}

func TestLimiterPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("store down")
	limiter := New(&fakeCounterStore{err: storeErr}, Settings{MaxPerDay: 10}, nil, nil)

	_, err := limiter.Check(context.Background(), domain.UserProfile{UserID: 1})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestLimiterRequiresInitialization(t *testing.T) {
	var limiter *Limiter
	if _, err := limiter.Check(context.Background(), domain.UserProfile{UserID: 1}); err == nil {
		t.Fatalf("expected error for nil limiter")
	}
}

type fakeCounterStore struct {
	daily      int64
	total      int64
	lastActive time.Time
	calls      int
	err        error
}

func (f *fakeCounterStore) SaveCounters(_ context.Context, _ domain.ProfileKey, daily, total int64, lastActive time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.daily = daily
	f.total = total
	f.lastActive = lastActive
	return nil
}

func (f *fakeCounterStore) apply(profile domain.UserProfile) domain.UserProfile {
	profile.DailyRequests = f.daily
	profile.TotalRequests = f.total
	profile.LastActive = f.lastActive
	return profile
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
