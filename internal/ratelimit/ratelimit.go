// Package ratelimit gates every inbound event behind a per-user daily request
// counter kept on the profile.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/timeutil"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	// Allow lets the event reach its handler.
	Allow Decision = iota
	// Warn blocks the handler and tells the user when the limit resets.
	Warn
	// Drop blocks the handler silently.
	Drop
)

// String implements fmt.Stringer for log fields.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Warn:
		return "warn"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

const adminMultiplier = 2

type counterStore interface {
	SaveCounters(ctx context.Context, key domain.ProfileKey, daily, total int64, lastActive time.Time) error
}

// Settings configures the limiter thresholds.
type Settings struct {
	MaxPerDay  int
	WarnMargin int
	Admins     map[int64]struct{}
}

// Verdict describes one gate decision.
type Verdict struct {
	Decision Decision
	// Daily is the counter value the decision was made against.
	Daily int64
	Limit int64
	// ResetIn is the time left until the next UTC day boundary.
	ResetIn time.Duration
}

// Limiter applies the daily request gate.
type Limiter struct {
	store    counterStore
	settings Settings
	clock    timeutil.Clock
	logger   *logrus.Entry
}

// New constructs a Limiter. A nil clock uses the system clock.
func New(store counterStore, settings Settings, clock timeutil.Clock, logger *logrus.Entry) *Limiter {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Limiter{
		store:    store,
		settings: settings,
		clock:    clock,
		logger:   logger,
	}
}

// Check decides whether the event may proceed and then records it against the
// profile's counters. The write is a plain read-modify-write: two concurrent
// events for one user can read the same counter and under-count by one.
func (l *Limiter) Check(ctx context.Context, profile domain.UserProfile) (Verdict, error) {
	if l == nil || l.store == nil {
		return Verdict{}, errors.New("rate limiter is not initialized")
	}
	if ctx == nil {
		return Verdict{}, errors.New("context is required")
	}

	now := l.clock().UTC()
	daily := profile.DailyRequests
	if !timeutil.SameUTCDate(profile.LastActive, now) {
		daily = 0
	}

	limit := l.LimitFor(profile.UserID)
	verdict := Verdict{
		Decision: decide(daily, limit, int64(l.settings.WarnMargin)),
		Daily:    daily,
		Limit:    limit,
		ResetIn:  timeutil.UntilNextUTCDay(now),
	}

	if err := l.store.SaveCounters(ctx, profile.Key(), daily+1, profile.TotalRequests+1, now); err != nil {
		return verdict, fmt.Errorf("record request: %w", err)
	}

	if verdict.Decision != Allow {
		l.logger.WithFields(logging.Fields{
			"event":    "rate_limited",
			"user_id":  profile.UserID,
			"decision": verdict.Decision.String(),
			"daily":    daily,
			"limit":    limit,
		}).Info("request over daily limit")
	}

	return verdict, nil
}

// LimitFor returns the daily allowance for a user; admins get double.
func (l *Limiter) LimitFor(userID int64) int64 {
	limit := int64(l.settings.MaxPerDay)
	if _, ok := l.settings.Admins[userID]; ok {
		limit *= adminMultiplier
	}
	return limit
}

// WarningText renders the one-time notice shown when the limit is reached.
func WarningText(resetIn time.Duration) string {
	return fmt.Sprintf("⚠️ <b>Limit reached!</b> Try again in <b>%s</b> ⏳", timeutil.FormatCountdown(resetIn))
}

func decide(daily, limit, warnMargin int64) Decision {
	switch {
	case daily < limit:
		return Allow
	case daily < limit+warnMargin:
		return Warn
	default:
		return Drop
	}
}
