// Package premium handles subscription plans, activation on payment and lazy
// expiry.
package premium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/timeutil"
)

// Currency is Telegram Stars.
const Currency = "XTR"

// ErrUnknownPlan is returned for payloads that name no plan.
var ErrUnknownPlan = errors.New("unknown premium plan")

// Plan is a purchasable subscription.
type Plan struct {
	ID     string
	Months int
	Stars  int
	USD    string
}

// Plans lists the offered subscriptions in display order.
var Plans = []Plan{
	{ID: "plan_1m", Months: 1, Stars: 200, USD: "3.99"},
	{ID: "plan_3m", Months: 3, Stars: 500, USD: "9.99"},
	{ID: "plan_6m", Months: 6, Stars: 1000, USD: "19.99"},
	{ID: "plan_12m", Months: 12, Stars: 1500, USD: "29.99"},
}

// Lookup finds a plan by id.
func Lookup(id string) (Plan, bool) {
	for _, plan := range Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return Plan{}, false
}

// Invoice renders the payment request for a plan.
func (p Plan) Invoice() event.Invoice {
	plural := ""
	if p.Months > 1 {
		plural = "s"
	}
	return event.Invoice{
		Title:       fmt.Sprintf("Premium - %d month%s plan", p.Months, plural),
		Description: fmt.Sprintf("$%s USD - Premium access for %d month%s", p.USD, p.Months, plural),
		Payload:     p.ID,
		Currency:    Currency,
		Label:       fmt.Sprintf("%d month%s", p.Months, plural),
		Amount:      p.Stars,
	}
}

type premiumStore interface {
	SetPremium(ctx context.Context, key domain.ProfileKey, plan string, end time.Time) error
	ClearPremium(ctx context.Context, key domain.ProfileKey) error
}

// Service answers premium checks and records purchases.
type Service struct {
	store  premiumStore
	admins map[int64]struct{}
	clock  timeutil.Clock
	logger *logrus.Entry
}

// NewService constructs a Service. Admins always count as premium.
func NewService(store premiumStore, admins map[int64]struct{}, clock timeutil.Clock, logger *logrus.Entry) *Service {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Service{
		store:  store,
		admins: admins,
		clock:  clock,
		logger: logger,
	}
}

// IsAdmin reports whether the user is in the admin set.
func (s *Service) IsAdmin(userID int64) bool {
	if s == nil {
		return false
	}
	_, ok := s.admins[userID]
	return ok
}

// IsActive reports whether the profile may use premium features. An expired
// subscription is cleared on the way.
func (s *Service) IsActive(ctx context.Context, profile domain.UserProfile) (bool, error) {
	if s == nil || s.store == nil {
		return false, errors.New("premium service is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if s.IsAdmin(profile.UserID) {
		return true, nil
	}

	now := s.clock()
	if profile.PremiumActive(now) {
		return true, nil
	}
	if profile.PremiumExpired(now) {
		if err := s.store.ClearPremium(ctx, profile.Key()); err != nil {
			return false, fmt.Errorf("clear expired premium: %w", err)
		}
		s.logger.WithFields(logging.Fields{
			"event":   "premium_expired",
			"user_id": profile.UserID,
			"plan":    profile.PremiumPlan,
		}).Info("premium subscription expired")
	}

	return false, nil
}

// ValidatePayload checks a pre-checkout payload.
func ValidatePayload(payload string) (Plan, error) {
	plan, ok := Lookup(payload)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, payload)
	}
	return plan, nil
}

// Activate records a successful payment and returns the new end of the
// subscription.
func (s *Service) Activate(ctx context.Context, key domain.ProfileKey, payload string) (time.Time, error) {
	if s == nil || s.store == nil {
		return time.Time{}, errors.New("premium service is not initialized")
	}
	if ctx == nil {
		return time.Time{}, errors.New("context is required")
	}

	plan, err := ValidatePayload(payload)
	if err != nil {
		return time.Time{}, err
	}

	end := s.clock().UTC().AddDate(0, plan.Months, 0).Truncate(time.Second)
	if err := s.store.SetPremium(ctx, key, plan.ID, end); err != nil {
		return time.Time{}, fmt.Errorf("activate premium: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "premium_activated",
		"user_id": key.UserID,
		"plan":    plan.ID,
		"until":   end.Format(time.RFC3339),
	}).Info("premium subscription activated")

	return end, nil
}
