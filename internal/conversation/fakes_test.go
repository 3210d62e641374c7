package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/premium"
	"expense_tracker_bot/internal/store"
)

const (
	testUserID  = int64(7)
	testBotID   = int64(1)
	testAdminID = int64(42)
)

var testNow = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

type harness struct {
	machine    *Machine
	profiles   *fakeProfiles
	ledger     *fakeLedger
	classifier *fakeClassifier
	sender     event.Sender
}

func newHarness(t *testing.T, mutate func(*domain.UserProfile)) *harness {
	t.Helper()

	profile := domain.UserProfile{
		UserID:     testUserID,
		BotID:      testBotID,
		Timezone:   "UTC-6",
		Currency:   "USD",
		Categories: domain.NewDefaultCategoryMap(),
	}
	if mutate != nil {
		mutate(&profile)
	}

	profiles := &fakeProfiles{profile: profile}
	ledger := &fakeLedger{}
	classifier := &fakeClassifier{}
	clock := func() time.Time { return testNow }

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	seq := 0
	machine, err := New(Deps{
		Profiles:   profiles,
		Ledger:     ledger,
		Categories: category.NewResolver(profiles, classifier, entry),
		Premium:    premium.NewService(profiles, map[int64]struct{}{testAdminID: {}}, clock, entry),
		Stats:      &fakeStats{users: 10, premium: 2, expenses: 99},
		Clock:      clock,
		NewSortKey: func(t time.Time) string {
			seq++
			return fmt.Sprintf("%010d_%07d", t.Unix(), seq)
		},
		Logger: entry,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	return &harness{
		machine:    machine,
		profiles:   profiles,
		ledger:     ledger,
		classifier: classifier,
		sender:     event.Sender{UserID: profile.UserID, BotID: profile.BotID, ChatID: profile.UserID},
	}
}

// send hands the machine a fresh profile snapshot, the way the dispatcher
// loads one per event.
func (h *harness) send(t *testing.T, ev event.Event) event.Response {
	t.Helper()
	resp, err := h.machine.Handle(context.Background(), h.profiles.current(), ev)
	if err != nil {
		t.Fatalf("Handle(%T) returned error: %v", ev, err)
	}
	return resp
}

func (h *harness) text(s string) event.Event {
	return event.TextMessage{Sender: h.sender, MessageID: 1, Text: s}
}

func (h *harness) command(s string) event.Event {
	return event.FromText(h.sender, 1, s)
}

func (h *harness) press(cb event.Callback) event.Event {
	return event.FromCallback(h.sender, "query", 2, cb.Encode())
}

func premiumUser(p *domain.UserProfile) {
	p.IsPremium = true
	p.PremiumPlan = "plan_1m"
	p.EndPremium = testNow.Add(24 * time.Hour).Unix()
}

func adminUser(p *domain.UserProfile) {
	p.UserID = testAdminID
}

func onlyReply(t *testing.T, resp event.Response) event.Reply {
	t.Helper()
	if len(resp.Replies) != 1 {
		t.Fatalf("expected exactly one reply, got %d (%+v)", len(resp.Replies), resp)
	}
	return resp.Replies[0]
}

func hasButton(rows [][]event.Button, cb event.Callback) bool {
	for _, row := range rows {
		for _, b := range row {
			if b.Callback == cb {
				return true
			}
		}
	}
	return false
}

type fakeProfiles struct {
	profile         domain.UserProfile
	writes          int
	err             error
	clearPendingErr error
}

func (f *fakeProfiles) current() domain.UserProfile {
	p := f.profile
	p.Categories = f.profile.Categories.Clone()
	if f.profile.PendingAction != nil {
		pending := *f.profile.PendingAction
		p.PendingAction = &pending
	}
	return p
}

func (f *fakeProfiles) write(key domain.ProfileKey) error {
	if f.err != nil {
		return f.err
	}
	if key != f.profile.Key() {
		return domain.ErrProfileNotFound
	}
	f.writes++
	return nil
}

func (f *fakeProfiles) Get(_ context.Context, key domain.ProfileKey) (domain.UserProfile, error) {
	if key != f.profile.Key() {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	return f.current(), nil
}

func (f *fakeProfiles) SetStatus(_ context.Context, key domain.ProfileKey, status domain.ConversationStatus) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.ConversationStatus = status
	return nil
}

func (f *fakeProfiles) SetPending(_ context.Context, key domain.ProfileKey, pending domain.PendingAction) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.PendingAction = &pending
	return nil
}

func (f *fakeProfiles) ClearPending(_ context.Context, key domain.ProfileKey) error {
	if f.clearPendingErr != nil {
		return f.clearPendingErr
	}
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.PendingAction = nil
	return nil
}

func (f *fakeProfiles) Reset(_ context.Context, key domain.ProfileKey) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.ConversationStatus = domain.StatusRegular
	f.profile.PendingAction = nil
	return nil
}

func (f *fakeProfiles) SetAI(_ context.Context, key domain.ProfileKey, enabled bool) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.ArtificialIntelligence = enabled
	return nil
}

func (f *fakeProfiles) SetReminders(_ context.Context, key domain.ProfileKey, enabled bool) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.DailyReminders = enabled
	return nil
}

func (f *fakeProfiles) SetTimezone(_ context.Context, key domain.ProfileKey, timezone string) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.Timezone = timezone
	return nil
}

func (f *fakeProfiles) SetCategory(_ context.Context, key domain.ProfileKey, id int, c domain.Category) error {
	if err := f.write(key); err != nil {
		return err
	}
	if f.profile.Categories == nil {
		f.profile.Categories = domain.NewDefaultCategoryMap()
	}
	f.profile.Categories[domain.CategoryKey(id)] = c
	return nil
}

func (f *fakeProfiles) SetCategories(_ context.Context, key domain.ProfileKey, categories domain.CategoryMap) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.Categories = categories.Clone()
	return nil
}

func (f *fakeProfiles) SetPremium(_ context.Context, key domain.ProfileKey, plan string, end time.Time) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.IsPremium = true
	f.profile.PremiumPlan = plan
	f.profile.EndPremium = end.Unix()
	return nil
}

func (f *fakeProfiles) ClearPremium(_ context.Context, key domain.ProfileKey) error {
	if err := f.write(key); err != nil {
		return err
	}
	f.profile.IsPremium = false
	f.profile.PremiumPlan = ""
	f.profile.EndPremium = 0
	return nil
}

type fakeLedger struct {
	records   []domain.ExpenseRecord
	insertErr error
}

func (f *fakeLedger) Insert(_ context.Context, record domain.ExpenseRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, existing := range f.records {
		if existing.UserID == record.UserID && existing.SortKey == record.SortKey {
			return errors.New("duplicate key")
		}
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeLedger) forUser(userID int64) []domain.ExpenseRecord {
	var out []domain.ExpenseRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

func (f *fakeLedger) QueryRange(_ context.Context, userID int64, start, end string, ascending bool) ([]domain.ExpenseRecord, error) {
	var out []domain.ExpenseRecord
	for _, rec := range f.forUser(userID) {
		if rec.Date >= start && rec.Date <= end {
			out = append(out, rec)
		}
	}
	domain.SortRecords(out, ascending)
	return out, nil
}

func (f *fakeLedger) QueryLatest(_ context.Context, userID int64, n int) ([]domain.ExpenseRecord, error) {
	out := f.forUser(userID)
	domain.SortRecords(out, false)
	if len(out) > n {
		out = out[:n]
	}
	domain.SortRecords(out, true)
	return out, nil
}

func (f *fakeLedger) Get(_ context.Context, userID int64, sortKey string) (domain.ExpenseRecord, error) {
	for _, rec := range f.records {
		if rec.UserID == userID && rec.SortKey == sortKey {
			return rec, nil
		}
	}
	return domain.ExpenseRecord{}, store.ErrRecordNotFound
}

func (f *fakeLedger) Delete(_ context.Context, userID int64, sortKey string) (bool, error) {
	for i, rec := range f.records {
		if rec.UserID == userID && rec.SortKey == sortKey {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) DeleteBatch(ctx context.Context, userID int64, sortKeys []string) (int64, error) {
	var deleted int64
	for _, key := range sortKeys {
		ok, _ := f.Delete(ctx, userID, key)
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

type fakeClassifier struct {
	enabled bool
	reply   string
	err     error
	calls   int
}

func (f *fakeClassifier) Enabled() bool {
	return f.enabled
}

func (f *fakeClassifier) Classify(context.Context, string, []string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeStats struct {
	users    int64
	premium  int64
	expenses int64
}

func (f *fakeStats) CountUsers(context.Context) (int64, error)        { return f.users, nil }
func (f *fakeStats) CountPremiumUsers(context.Context) (int64, error) { return f.premium, nil }
func (f *fakeStats) CountExpenses(context.Context) (int64, error)     { return f.expenses, nil }
