package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/export"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/store"
	"expense_tracker_bot/internal/timeutil"
)

const (
	defaultLastRecords = 5
	maxLastRecords     = 50
	deleteCandidates   = 10
)

type commandFunc func(ctx context.Context, profile domain.UserProfile, cmd event.Command) (event.Response, error)

type command struct {
	run     commandFunc
	premium bool
	admin   bool
}

func (m *Machine) commandTable() map[string]command {
	return map[string]command{
		"start":           {run: m.cmdStart},
		"help":            {run: m.cmdHelp},
		"stats":           {run: m.cmdStats},
		"history":         {run: m.cmdHistory},
		"last":            {run: m.cmdLast},
		"delete":          {run: m.cmdDelete},
		"categories":      {run: m.cmdCategories, premium: true},
		"export":          {run: m.cmdExport, premium: true},
		"settings":        {run: m.cmdSettings},
		"subscription":    {run: m.cmdSubscription},
		"premium":         {run: m.cmdSubscription},
		"cancel":          {run: m.cmdCancel},
		"ai":              {run: m.cmdAI},
		"timezone":        {run: m.cmdTimezone},
		"users_stats":     {run: m.cmdUsersStats, admin: true},
		"empty_user_data": {run: m.cmdEmptyUserData, admin: true},
		"admin_help":      {run: m.cmdAdminHelp, admin: true},
	}
}

// handleCommand runs a command. Any command abandons a half-finished category
// naming so the machine is back in REGULAR.
func (m *Machine) handleCommand(ctx context.Context, profile domain.UserProfile, cmd event.Command) (event.Response, error) {
	if profile.ConversationStatus != domain.StatusRegular && cmd.Name != "cancel" {
		if err := m.profiles.SetStatus(ctx, profile.Key(), domain.StatusRegular); err != nil {
			return event.Response{}, fmt.Errorf("leave category naming: %w", err)
		}
		profile.ConversationStatus = domain.StatusRegular
	}

	entry, ok := m.commands[cmd.Name]
	if !ok {
		return event.Text(unknownCommandText), nil
	}
	if entry.admin && !m.premium.IsAdmin(profile.UserID) {
		return event.Text(adminOnlyText), nil
	}
	if entry.premium {
		active, err := m.premium.IsActive(ctx, profile)
		if err != nil {
			return event.Response{}, fmt.Errorf("check premium: %w", err)
		}
		if !active {
			return premiumRequired(false), nil
		}
	}

	return entry.run(ctx, profile, cmd)
}

func premiumRequired(edit bool) event.Response {
	return event.Response{Replies: []event.Reply{{
		Text:    premiumRequiredText,
		HTML:    true,
		Edit:    edit,
		Buttons: [][]event.Button{event.Row(button("💎 See plans", event.PremiumShow))},
	}}}
}

func (m *Machine) cmdStart(context.Context, domain.UserProfile, event.Command) (event.Response, error) {
	return event.HTML(startText), nil
}

func (m *Machine) cmdHelp(context.Context, domain.UserProfile, event.Command) (event.Response, error) {
	return event.HTML(helpText), nil
}

func (m *Machine) cmdAdminHelp(context.Context, domain.UserProfile, event.Command) (event.Response, error) {
	return event.HTML(adminHelpText), nil
}

func (m *Machine) cmdStats(context.Context, domain.UserProfile, event.Command) (event.Response, error) {
	return event.Response{Replies: []event.Reply{{
		Text:    pickWindowText,
		Buttons: windowKeyboard(event.StatsWindow, event.StatsCancel, event.StatsWindows),
	}}}, nil
}

func (m *Machine) cmdHistory(context.Context, domain.UserProfile, event.Command) (event.Response, error) {
	return event.Response{Replies: []event.Reply{{
		Text:    pickWindowText,
		Buttons: windowKeyboard(event.HistoryWindow, event.HistoryCancel, event.HistoryWindows),
	}}}, nil
}

func (m *Machine) cmdLast(ctx context.Context, profile domain.UserProfile, cmd event.Command) (event.Response, error) {
	n := defaultLastRecords
	if len(cmd.Args) > 0 {
		parsed, err := strconv.Atoi(cmd.Args[0])
		if err != nil || parsed <= 0 {
			return event.Text(lastUsageText), nil
		}
		n = parsed
	}
	if n > maxLastRecords {
		n = maxLastRecords
	}

	records, err := m.ledger.QueryLatest(ctx, profile.UserID, n)
	if err != nil {
		return event.Response{}, err
	}
	if len(records) == 0 {
		return event.Text(noRecordsText), nil
	}

	header := fmt.Sprintf("📋 <b>Last %d Records:</b>\n\n", len(records))
	return event.HTML(renderRecords(header, profile, records)), nil
}

func (m *Machine) cmdDelete(ctx context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	records, err := m.ledger.QueryLatest(ctx, profile.UserID, deleteCandidates)
	if err != nil {
		return event.Response{}, err
	}
	if len(records) == 0 {
		return event.Text(noRecordsDeleteText), nil
	}

	return event.Response{Replies: []event.Reply{{
		Text:    "Select a record to delete:",
		Buttons: deleteKeyboard(profile, records),
	}}}, nil
}

func (m *Machine) cmdCategories(_ context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	return event.Response{Replies: []event.Reply{categoriesMenu(profile, false)}}, nil
}

func categoriesMenu(profile domain.UserProfile, edit bool) event.Reply {
	var b strings.Builder
	b.WriteString("🗂 <b>Your categories</b>\n\n")
	for _, choice := range category.ExpenseChoices(profile) {
		b.WriteString(choice.Name + "\n")
	}
	b.WriteString("\nTap ❌ to hide a category, or add your own.")

	return event.Reply{
		Text:    b.String(),
		HTML:    true,
		Edit:    edit,
		Buttons: categoriesKeyboard(profile),
	}
}

func (m *Machine) cmdExport(ctx context.Context, profile domain.UserProfile, cmd event.Command) (event.Response, error) {
	raw := ""
	if len(cmd.Args) > 0 {
		raw = cmd.Args[0]
	}
	format, err := export.ParseFormat(raw)
	if err != nil {
		return event.Text(exportUsageText), nil
	}

	records, err := m.ledger.QueryRange(ctx, profile.UserID, store.MinDate, store.MaxDate, true)
	if err != nil {
		return event.Response{}, err
	}
	if len(records) == 0 {
		return event.Text(noRecordsExportText), nil
	}

	data, err := export.Render(format, records, func(id int) string {
		return category.DisplayName(profile, id)
	})
	if err != nil {
		return event.Response{}, fmt.Errorf("render export: %w", err)
	}

	m.logger.WithFields(logging.Fields{
		"event":   "ledger_exported",
		"user_id": profile.UserID,
		"format":  string(format),
		"records": len(records),
	}).Info("ledger export rendered")

	return event.Response{Replies: []event.Reply{{
		Document: &event.Document{
			Filename: export.Filename(profile.UserID, format),
			Data:     data,
			Caption:  fmt.Sprintf("📁 %d records", len(records)),
		},
	}}}, nil
}

func (m *Machine) cmdSettings(_ context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	return event.Response{Replies: []event.Reply{settingsMenu(profile, false)}}, nil
}

func settingsMenu(profile domain.UserProfile, edit bool) event.Reply {
	timezone := profile.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	currency := profile.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	text := fmt.Sprintf(
		"⚙️ <b>Settings</b>\n\n🕒 Timezone: <b>%s</b>\n💵 Currency: <b>%s</b>\n🤖 AI categorization: <b>%s</b>\n🔔 Daily reminders: <b>%s</b>\n\nChange the timezone with /timezone UTC+2.",
		timezone, currency, onOff(profile.ArtificialIntelligence, "on", "off"), onOff(profile.DailyReminders, "on", "off"),
	)
	return event.Reply{
		Text:    text,
		HTML:    true,
		Edit:    edit,
		Buttons: settingsKeyboard(profile),
	}
}

func (m *Machine) cmdSubscription(ctx context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	reply, err := m.subscriptionView(ctx, profile, false)
	if err != nil {
		return event.Response{}, err
	}
	return event.Response{Replies: []event.Reply{reply}}, nil
}

func (m *Machine) subscriptionView(ctx context.Context, profile domain.UserProfile, edit bool) (event.Reply, error) {
	active, err := m.premium.IsActive(ctx, profile)
	if err != nil {
		return event.Reply{}, fmt.Errorf("check premium: %w", err)
	}
	if !active {
		return event.Reply{Text: premiumPitchText, HTML: true, Edit: edit, Buttons: plansKeyboard()}, nil
	}

	text := "🟢 <b>Premium is active</b>"
	if profile.EndPremium > 0 && profile.IsPremium {
		until := time.Unix(profile.EndPremium, 0).In(timeutil.ParseOffset(profile.Timezone))
		text += fmt.Sprintf(" until <b>%s</b>", timeutil.DateKey(until))
	}
	return event.Reply{Text: text + ".", HTML: true, Edit: edit}, nil
}

func (m *Machine) cmdCancel(ctx context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	if err := m.profiles.Reset(ctx, profile.Key()); err != nil {
		return event.Response{}, fmt.Errorf("cancel: %w", err)
	}
	return event.Text(cancelledText), nil
}

func (m *Machine) cmdAI(ctx context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	enabled, err := m.toggleAI(ctx, profile)
	if err != nil {
		return event.Response{}, err
	}
	return event.Text("🤖 Automatic categorization is now " + onOff(enabled, "on.", "off.")), nil
}

func (m *Machine) toggleAI(ctx context.Context, profile domain.UserProfile) (bool, error) {
	enabled := !profile.ArtificialIntelligence
	if err := m.profiles.SetAI(ctx, profile.Key(), enabled); err != nil {
		return false, fmt.Errorf("toggle ai: %w", err)
	}
	return enabled, nil
}

func (m *Machine) cmdTimezone(ctx context.Context, profile domain.UserProfile, cmd event.Command) (event.Response, error) {
	if len(cmd.Args) == 0 {
		current := profile.Timezone
		if current == "" {
			current = "UTC"
		}
		return event.HTML(fmt.Sprintf("🕒 Your timezone is <b>%s</b>. Change it with /timezone UTC+2", current)), nil
	}

	offset := strings.ToUpper(strings.TrimSpace(cmd.Args[0]))
	if !timeutil.ValidOffset(offset) {
		return event.Text(timezoneUsageText), nil
	}
	if err := m.profiles.SetTimezone(ctx, profile.Key(), offset); err != nil {
		return event.Response{}, fmt.Errorf("set timezone: %w", err)
	}
	return event.HTML(fmt.Sprintf("🕒 Timezone set to <b>%s</b>.", offset)), nil
}

func (m *Machine) cmdUsersStats(ctx context.Context, profile domain.UserProfile, cmd event.Command) (event.Response, error) {
	if len(cmd.Args) == 0 {
		return m.globalStats(ctx)
	}

	userID := profile.UserID
	if cmd.Args[0] != "me" {
		parsed, err := strconv.ParseInt(cmd.Args[0], 10, 64)
		if err != nil || parsed <= 0 {
			return event.Text(usersStatsUsageText), nil
		}
		userID = parsed
	}

	records, err := m.ledger.QueryRange(ctx, userID, store.MinDate, store.MaxDate, true)
	if err != nil {
		return event.Response{}, err
	}

	text := fmt.Sprintf("📊 Stats for user %d:\nTotal records: %d", userID, len(records))
	if len(records) > 0 {
		first, last := records[0].Date, records[0].Date
		for _, rec := range records[1:] {
			if rec.Date < first {
				first = rec.Date
			}
			if rec.Date > last {
				last = rec.Date
			}
		}
		text += fmt.Sprintf("\nFirst record: %s\nLast record: %s", first, last)
	}
	return event.Text(text), nil
}

func (m *Machine) globalStats(ctx context.Context) (event.Response, error) {
	if m.stats == nil {
		return event.Text("⚠️ Global stats are not available."), nil
	}

	users, err := m.stats.CountUsers(ctx)
	if err != nil {
		return event.Response{}, err
	}
	premiumUsers, err := m.stats.CountPremiumUsers(ctx)
	if err != nil {
		return event.Response{}, err
	}
	expenses, err := m.stats.CountExpenses(ctx)
	if err != nil {
		return event.Response{}, err
	}

	return event.Text(fmt.Sprintf("📊 Global stats:\nUsers: %d\nPremium users: %d\nRecords: %d", users, premiumUsers, expenses)), nil
}

func (m *Machine) cmdEmptyUserData(ctx context.Context, profile domain.UserProfile, _ event.Command) (event.Response, error) {
	records, err := m.ledger.QueryRange(ctx, profile.UserID, store.MinDate, store.MaxDate, true)
	if err != nil {
		return event.Response{}, err
	}

	keys := make([]string, 0, len(records))
	for _, rec := range records {
		keys = append(keys, rec.SortKey)
	}

	deleted, err := m.ledger.DeleteBatch(ctx, profile.UserID, keys)
	if err != nil {
		return event.Response{}, fmt.Errorf("empty user data (%d of %d deleted): %w", deleted, len(keys), err)
	}

	m.logger.WithFields(logging.Fields{
		"event":   "user_data_emptied",
		"user_id": profile.UserID,
		"records": deleted,
	}).Info("deleted all records for user")

	return event.Text(fmt.Sprintf("✅ Deleted %d records for user %d", deleted, profile.UserID)), nil
}
