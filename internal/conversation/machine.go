// Package conversation routes user events through the two-state conversation
// machine and turns them into ledger mutations and replies.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/premium"
	"expense_tracker_bot/internal/timeutil"
)

const defaultCurrency = "USD"

// ProfileStore persists the conversation fields of a profile.
type ProfileStore interface {
	Get(ctx context.Context, key domain.ProfileKey) (domain.UserProfile, error)
	SetStatus(ctx context.Context, key domain.ProfileKey, status domain.ConversationStatus) error
	SetPending(ctx context.Context, key domain.ProfileKey, pending domain.PendingAction) error
	ClearPending(ctx context.Context, key domain.ProfileKey) error
	Reset(ctx context.Context, key domain.ProfileKey) error
	SetAI(ctx context.Context, key domain.ProfileKey, enabled bool) error
	SetReminders(ctx context.Context, key domain.ProfileKey, enabled bool) error
	SetTimezone(ctx context.Context, key domain.ProfileKey, timezone string) error
}

// LedgerStore reads and writes expense records.
type LedgerStore interface {
	Insert(ctx context.Context, record domain.ExpenseRecord) error
	QueryRange(ctx context.Context, userID int64, start, end string, ascending bool) ([]domain.ExpenseRecord, error)
	QueryLatest(ctx context.Context, userID int64, n int) ([]domain.ExpenseRecord, error)
	Get(ctx context.Context, userID int64, sortKey string) (domain.ExpenseRecord, error)
	Delete(ctx context.Context, userID int64, sortKey string) (bool, error)
	DeleteBatch(ctx context.Context, userID int64, sortKeys []string) (int64, error)
}

// CategoryService mutates category sets and resolves free text.
type CategoryService interface {
	AddCategory(ctx context.Context, profile domain.UserProfile, name string) (category.AddResult, error)
	DeactivateCategory(ctx context.Context, profile domain.UserProfile, id int) (domain.Category, error)
	ResetToDefault(ctx context.Context, profile domain.UserProfile) error
	ResolveFreeText(ctx context.Context, profile domain.UserProfile, description string) category.Resolution
}

// PremiumService answers admin and subscription checks.
type PremiumService interface {
	IsAdmin(userID int64) bool
	IsActive(ctx context.Context, profile domain.UserProfile) (bool, error)
	Activate(ctx context.Context, key domain.ProfileKey, payload string) (time.Time, error)
}

// StatsSource provides global counts for admins.
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountPremiumUsers(ctx context.Context) (int64, error)
	CountExpenses(ctx context.Context) (int64, error)
}

// Deps is everything the machine talks to. It is built once at startup.
// Stats is optional; without it /users_stats only reports per user.
type Deps struct {
	Profiles   ProfileStore
	Ledger     LedgerStore
	Categories CategoryService
	Premium    PremiumService
	Stats      StatsSource
	Clock      timeutil.Clock
	NewSortKey func(time.Time) string
	Logger     *logrus.Entry
}

// Machine handles one event at a time against the caller's profile snapshot.
type Machine struct {
	profiles   ProfileStore
	ledger     LedgerStore
	categories CategoryService
	premium    PremiumService
	stats      StatsSource
	clock      timeutil.Clock
	newSortKey func(time.Time) string
	logger     *logrus.Entry
	commands   map[string]command
}

// New validates deps and builds the command table.
func New(deps Deps) (*Machine, error) {
	switch {
	case deps.Profiles == nil:
		return nil, errors.New("profile store is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger store is required")
	case deps.Categories == nil:
		return nil, errors.New("category service is required")
	case deps.Premium == nil:
		return nil, errors.New("premium service is required")
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock
	}
	if deps.NewSortKey == nil {
		deps.NewSortKey = timeutil.SortKey
	}
	if deps.Logger == nil {
		deps.Logger = logging.Logger()
	}

	m := &Machine{
		profiles:   deps.Profiles,
		ledger:     deps.Ledger,
		categories: deps.Categories,
		premium:    deps.Premium,
		stats:      deps.Stats,
		clock:      deps.Clock,
		newSortKey: deps.NewSortKey,
		logger:     deps.Logger,
	}
	m.commands = m.commandTable()
	return m, nil
}

// Handle routes an event. Returned errors are store or service failures the
// caller reports generically; user mistakes come back as replies.
func (m *Machine) Handle(ctx context.Context, profile domain.UserProfile, ev event.Event) (event.Response, error) {
	if m == nil || m.profiles == nil {
		return event.Response{}, errors.New("conversation machine is not initialized")
	}
	if ctx == nil {
		return event.Response{}, errors.New("context is required")
	}

	switch e := ev.(type) {
	case event.TextMessage:
		return m.handleText(ctx, profile, e)
	case event.Command:
		return m.handleCommand(ctx, profile, e)
	case event.CallbackQuery:
		return m.handleCallback(ctx, profile, e)
	case event.PreCheckout:
		return handlePreCheckout(e), nil
	case event.SuccessfulPayment:
		return m.handlePayment(ctx, profile, e)
	default:
		return event.Response{}, fmt.Errorf("unsupported event %T", ev)
	}
}

func (m *Machine) handleText(ctx context.Context, profile domain.UserProfile, msg event.TextMessage) (event.Response, error) {
	if profile.ConversationStatus == domain.StatusAwaitingCategoryName {
		return m.addCategory(ctx, profile, msg.Text)
	}

	entry, err := ParseEntry(msg.Text)
	if err != nil {
		return event.HTML(parseErrorText(err)), nil
	}

	if entry.IsIncome {
		record := m.newRecord(profile, entry.Amount, domain.CategoryIncome, entry.Description, true)
		if err := m.insert(ctx, record); err != nil {
			return event.Response{}, err
		}
		return event.Text(loggedText(entry.Amount, category.DisplayName(profile, domain.CategoryIncome))), nil
	}

	if profile.ArtificialIntelligence && entry.Description != "" {
		resolution := m.categories.ResolveFreeText(ctx, profile, entry.Description)
		record := m.newRecord(profile, entry.Amount, resolution.ID, entry.Description, false)
		if err := m.insert(ctx, record); err != nil {
			return event.Response{}, err
		}
		text := loggedText(entry.Amount, resolution.Name)
		if resolution.Fallback {
			text += "\n⚠️ Automatic categorization was unavailable, so it was saved under " + resolution.Name + "."
		}
		return event.Text(text), nil
	}

	pending := domain.PendingAction{Amount: entry.Amount, Description: entry.Description}
	if err := m.profiles.SetPending(ctx, profile.Key(), pending); err != nil {
		return event.Response{}, fmt.Errorf("store pending action: %w", err)
	}

	text := fmt.Sprintf("<b>Expense</b>: %s\n", entry.Amount.Format())
	if entry.Description != "" {
		text += fmt.Sprintf("<b>Description</b>: %s\n", html.EscapeString(entry.Description))
	}
	text += pickCategoryText

	return event.Response{Replies: []event.Reply{{
		Text:    text,
		HTML:    true,
		Buttons: categoryKeyboard(profile),
	}}}, nil
}

// addCategory runs the AWAITING_CATEGORY_NAME transition. The profile returns
// to REGULAR whether or not the name was accepted.
func (m *Machine) addCategory(ctx context.Context, profile domain.UserProfile, name string) (event.Response, error) {
	result, addErr := m.categories.AddCategory(ctx, profile, name)
	if err := m.profiles.SetStatus(ctx, profile.Key(), domain.StatusRegular); err != nil {
		return event.Response{}, errors.Join(addErr, fmt.Errorf("leave category naming: %w", err))
	}

	switch {
	case errors.Is(addErr, category.ErrNameTooLong):
		return event.Text(fmt.Sprintf("⚠️ Category names can be at most %d characters. Use the categories menu to try again.", domain.MaxCategoryNameLength)), nil
	case errors.Is(addErr, category.ErrInvalidName):
		return event.Text("⚠️ Category names can't be empty or start with \"/\". Use the categories menu to try again."), nil
	case errors.Is(addErr, category.ErrTooManyCategories):
		return event.Text(fmt.Sprintf("⚠️ You can have at most %d custom categories. Remove one first.", category.MaxCustomCategories)), nil
	case addErr != nil:
		return event.Response{}, addErr
	}

	if result.Reactivated {
		return event.HTML(fmt.Sprintf("♻️ Category <b>%s</b> is active again.", html.EscapeString(result.Name))), nil
	}
	return event.HTML(fmt.Sprintf("✅ Category <b>%s</b> added.", html.EscapeString(result.Name))), nil
}

func (m *Machine) newRecord(profile domain.UserProfile, amount domain.Money, categoryID int, description string, income bool) domain.ExpenseRecord {
	now := m.clock().UTC()
	currency := profile.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return domain.ExpenseRecord{
		UserID:      profile.UserID,
		SortKey:     m.newSortKey(now),
		Date:        timeutil.DateKey(now.In(timeutil.ParseOffset(profile.Timezone))),
		Amount:      amount,
		Category:    categoryID,
		Currency:    currency,
		Description: description,
		Income:      income,
	}
}

func (m *Machine) insert(ctx context.Context, record domain.ExpenseRecord) error {
	if err := m.ledger.Insert(ctx, record); err != nil {
		return fmt.Errorf("log expense: %w", err)
	}
	m.logger.WithFields(logging.Fields{
		"event":       "expense_logged",
		"user_id":     record.UserID,
		"category_id": record.Category,
		"income":      record.Income,
	}).Info("ledger record written")
	return nil
}

func handlePreCheckout(e event.PreCheckout) event.Response {
	plan, err := premium.ValidatePayload(e.Payload)
	if err != nil || e.Currency != premium.Currency || e.Total != plan.Stars {
		return event.Response{PreCheckout: &event.PreCheckoutAnswer{Error: checkoutRejectedText}}
	}
	return event.Response{PreCheckout: &event.PreCheckoutAnswer{OK: true}}
}

func (m *Machine) handlePayment(ctx context.Context, profile domain.UserProfile, e event.SuccessfulPayment) (event.Response, error) {
	end, err := m.premium.Activate(ctx, profile.Key(), e.Payload)
	if err != nil {
		return event.Response{}, fmt.Errorf("payment %s: %w", e.ChargeID, err)
	}
	return event.HTML(fmt.Sprintf("🎉 <b>Premium activated!</b>\nActive until <b>%s</b>.", timeutil.DateKey(end))), nil
}

func parseErrorText(err error) string {
	switch {
	case errors.Is(err, ErrMessageTooLong):
		return tooLongText
	case errors.Is(err, ErrAmountBothEnds):
		return bothEndsText
	case errors.Is(err, domain.ErrAmountTooLarge):
		return amountTooLargeText
	default:
		return formatText
	}
}

func loggedText(amount domain.Money, categoryName string) string {
	return fmt.Sprintf("✅ Logged: %s in %s", amount.Format(), categoryName)
}
