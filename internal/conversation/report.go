package conversation

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/store"
	"expense_tracker_bot/internal/timeutil"
)

const (
	truncationMarker  = "…"
	buttonDescription = 20
)

// WindowRange returns the inclusive date keys covered by a window at now,
// which must already be expressed in the user's zone.
func WindowRange(w event.Window, now time.Time) (string, string) {
	today := timeutil.DateKey(now)
	switch w {
	case event.WindowToday:
		return today, today
	case event.WindowWeek:
		return timeutil.DateKey(timeutil.StartOfWeek(now)), today
	case event.WindowMonth:
		return timeutil.DateKey(timeutil.StartOfMonth(now)), today
	case event.WindowPrevMonth:
		first := timeutil.StartOfMonth(now)
		return timeutil.DateKey(first.AddDate(0, -1, 0)), timeutil.DateKey(first.AddDate(0, 0, -1))
	case event.WindowYear:
		return fmt.Sprintf("%04d-01-01", now.Year()), today
	default:
		return store.MinDate, store.MaxDate
	}
}

// CategoryTotal is the sum of one category's records in a window.
type CategoryTotal struct {
	ID    int
	Name  string
	Total domain.Money
	Count int
}

// Summary aggregates a window's records.
type Summary struct {
	Expenses     []CategoryTotal
	Income       []CategoryTotal
	ExpenseTotal domain.Money
	IncomeTotal  domain.Money
	ExpenseCount int
	IncomeCount  int
}

// Net is income minus expenses.
func (s Summary) Net() domain.Money {
	return s.IncomeTotal.Sub(s.ExpenseTotal)
}

// Summarize groups records by category, splitting income from expenses.
func Summarize(profile domain.UserProfile, records []domain.ExpenseRecord) Summary {
	expenses := map[int]*CategoryTotal{}
	income := map[int]*CategoryTotal{}

	var summary Summary
	for _, rec := range records {
		bucket := expenses
		if rec.Income {
			bucket = income
			summary.IncomeTotal = summary.IncomeTotal.Add(rec.Amount)
			summary.IncomeCount++
		} else {
			summary.ExpenseTotal = summary.ExpenseTotal.Add(rec.Amount)
			summary.ExpenseCount++
		}

		total, ok := bucket[rec.Category]
		if !ok {
			total = &CategoryTotal{ID: rec.Category, Name: category.DisplayName(profile, rec.Category)}
			bucket[rec.Category] = total
		}
		total.Total = total.Total.Add(rec.Amount)
		total.Count++
	}

	summary.Expenses = sortedTotals(expenses)
	summary.Income = sortedTotals(income)
	return summary
}

func sortedTotals(totals map[int]*CategoryTotal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for _, total := range totals {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Total.Cmp(out[j].Total.Decimal); cmp != 0 {
			return cmp > 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func renderStats(w event.Window, summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Stats for %s</b>:\n\n", w.Label())

	b.WriteString("<b>➖ Expenses</b>\n\n")
	writeTotals(&b, summary.Expenses)
	b.WriteString("\n<b>➕ Income</b>\n\n")
	writeTotals(&b, summary.Income)

	fmt.Fprintf(&b, "\n<b>Total Expenses: <code>%s</code></b> (%d)\n", summary.ExpenseTotal.Format(), summary.ExpenseCount)
	fmt.Fprintf(&b, "<b>Total Income: <code>%s</code></b> (%d)\n\n", summary.IncomeTotal.Format(), summary.IncomeCount)

	net := summary.Net()
	sign := "+"
	if net.IsNegative() {
		sign = ""
	}
	fmt.Fprintf(&b, "<b>Total Net: <code>%s%s</code></b>", sign, net.Format())
	return b.String()
}

func writeTotals(b *strings.Builder, totals []CategoryTotal) {
	if len(totals) == 0 {
		b.WriteString("<i>none</i>\n")
		return
	}
	for _, total := range totals {
		fmt.Fprintf(b, "%s: <code>%s</code> (%d)\n", html.EscapeString(total.Name), total.Total.Format(), total.Count)
	}
}

func recordLine(profile domain.UserProfile, rec domain.ExpenseRecord) string {
	line := fmt.Sprintf("%s: <code>%s</code> - %s", rec.Date, rec.Amount.Format(), html.EscapeString(category.DisplayName(profile, rec.Category)))
	if rec.Description != "" {
		line += " (" + html.EscapeString(rec.Description) + ")"
	}
	return line
}

func buttonLabel(profile domain.UserProfile, rec domain.ExpenseRecord) string {
	label := fmt.Sprintf("%s - %s - %s", rec.Date, rec.Amount.Format(), category.DisplayName(profile, rec.Category))
	if rec.Description != "" {
		label += " (" + shorten(rec.Description, buttonDescription) + ")"
	}
	return label
}

func shorten(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit-1]) + truncationMarker
}

// boundLines joins whole lines under a header, stopping before the message
// would exceed the transport limit. Cutting on line boundaries keeps HTML
// tags balanced.
func boundLines(header string, lines []string) string {
	var b strings.Builder
	b.WriteString(header)
	size := event.TextLength(header)
	budget := event.MaxMessageLength - event.TextLength("\n"+truncationMarker)

	for i, line := range lines {
		piece := line
		if i > 0 {
			piece = "\n" + line
		}
		n := event.TextLength(piece)
		if size+n > budget {
			b.WriteString("\n" + truncationMarker)
			return b.String()
		}
		b.WriteString(piece)
		size += n
	}
	return b.String()
}

func renderRecords(header string, profile domain.UserProfile, records []domain.ExpenseRecord) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, recordLine(profile, rec))
	}
	return boundLines(header, lines)
}

func renderHistory(w event.Window, profile domain.UserProfile, records []domain.ExpenseRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("📅 No records for <b>%s</b>.", w.Label())
	}
	return renderRecords(fmt.Sprintf("📅 <b>History for %s</b>:\n\n", w.Label()), profile, records)
}

// PeriodReport renders the stats view for w in the profile's zone. The
// boolean is false when the window holds no records.
func (m *Machine) PeriodReport(ctx context.Context, profile domain.UserProfile, w event.Window) (string, bool, error) {
	start, end := WindowRange(w, m.localNow(profile))
	records, err := m.ledger.QueryRange(ctx, profile.UserID, start, end, true)
	if err != nil {
		return "", false, err
	}
	if len(records) == 0 {
		return "", false, nil
	}
	return renderStats(w, Summarize(profile, records)), true, nil
}
