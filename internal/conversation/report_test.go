package conversation

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/store"
	"expense_tracker_bot/internal/timeutil"
)

func TestWindowRange(t *testing.T) {
	now := time.Date(2024, 3, 5, 23, 30, 0, 0, timeutil.ParseOffset("UTC-6"))

	tests := []struct {
		window     event.Window
		start, end string
	}{
		{event.WindowToday, "2024-03-05", "2024-03-05"},
		{event.WindowWeek, "2024-03-04", "2024-03-05"},
		{event.WindowMonth, "2024-03-01", "2024-03-05"},
		{event.WindowPrevMonth, "2024-02-01", "2024-02-29"},
		{event.WindowYear, "2024-01-01", "2024-03-05"},
		{event.WindowAll, store.MinDate, store.MaxDate},
	}

	for _, tt := range tests {
		start, end := WindowRange(tt.window, now)
		if start != tt.start || end != tt.end {
			t.Fatalf("%s: got %s..%s, want %s..%s", tt.window, start, end, tt.start, tt.end)
		}
	}
}

func TestPrevMonthAcrossYear(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	start, end := WindowRange(event.WindowPrevMonth, now)
	if start != "2024-12-01" || end != "2024-12-31" {
		t.Fatalf("got %s..%s", start, end)
	}
}

func TestBoundLines(t *testing.T) {
	short := boundLines("head\n", []string{"a", "b"})
	if short != "head\na\nb" {
		t.Fatalf("unexpected short output %q", short)
	}

	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "<b>" + strings.Repeat("é", 80) + "</b>"
	}
	got := boundLines("head\n", lines)
	if utf8.RuneCountInString(got) > event.MaxMessageLength {
		t.Fatalf("expected bounded output, got %d characters", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "\n"+truncationMarker) {
		t.Fatalf("expected truncation marker")
	}
	if strings.Count(got, "<b>") != strings.Count(got, "</b>") {
		t.Fatalf("expected whole lines only")
	}
}

func TestRenderHistoryBoundsEmojiDescriptions(t *testing.T) {
	profile := domain.UserProfile{Categories: domain.NewDefaultCategoryMap()}
	records := make([]domain.ExpenseRecord, 60)
	for i := range records {
		records[i] = domain.ExpenseRecord{
			Date:        "2024-03-05",
			Amount:      domain.MustMoney("12.50"),
			Category:    domain.CategoryFood,
			Description: strings.Repeat("🍕", 90),
		}
	}

	got := renderHistory(event.WindowToday, profile, records)
	if n := event.TextLength(got); n > event.MaxMessageLength {
		t.Fatalf("expected at most %d code units, got %d", event.MaxMessageLength, n)
	}
	if !strings.HasSuffix(got, "\n"+truncationMarker) {
		t.Fatalf("expected truncated history")
	}
}

func TestPeriodReportCoversPreviousLocalMonth(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.records = []domain.ExpenseRecord{
		{UserID: testUserID, SortKey: "1", Date: "2024-05-10", Amount: domain.MustMoney("12.50"), Category: domain.CategoryFood},
		{UserID: testUserID, SortKey: "2", Date: "2024-05-31", Amount: domain.MustMoney("100"), Category: domain.CategoryIncome, Income: true},
		{UserID: testUserID, SortKey: "3", Date: "2024-06-01", Amount: domain.MustMoney("999"), Category: domain.CategoryFood},
	}

	text, ok, err := h.machine.PeriodReport(context.Background(), h.profiles.current(), event.WindowPrevMonth)
	if err != nil || !ok {
		t.Fatalf("expected a report, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(text, "Previous Month") || !strings.Contains(text, "$12.50") {
		t.Fatalf("expected May totals, got %q", text)
	}
	if strings.Contains(text, "$999.00") {
		t.Fatalf("expected June records to be excluded, got %q", text)
	}

	h.ledger.records = nil
	if _, ok, err := h.machine.PeriodReport(context.Background(), h.profiles.current(), event.WindowPrevMonth); ok || err != nil {
		t.Fatalf("expected empty month to be skipped, got ok=%v err=%v", ok, err)
	}
}
