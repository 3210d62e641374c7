package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/premium"
	"expense_tracker_bot/internal/store"
	"expense_tracker_bot/internal/timeutil"
)

func edited(text string, html bool, buttons [][]event.Button) event.Response {
	return event.Response{Replies: []event.Reply{{Text: text, HTML: html, Edit: true, Buttons: buttons}}}
}

func toast(text string) event.Response {
	return event.Response{CallbackText: text}
}

func (m *Machine) handleCallback(ctx context.Context, profile domain.UserProfile, q event.CallbackQuery) (event.Response, error) {
	if q.ParseErr != nil {
		m.logger.WithFields(logging.Fields{
			"event":   "callback_unknown",
			"user_id": profile.UserID,
		}).WithError(q.ParseErr).Debug("ignoring unknown callback")
		return edited(staleButtonText, false, nil), nil
	}

	cb := q.Callback
	switch cb.Kind {
	case event.ExpenseCategory:
		return m.confirmCategory(ctx, profile, cb.CategoryID)
	case event.ExpenseCancel:
		if err := m.profiles.ClearPending(ctx, profile.Key()); err != nil {
			return event.Response{}, fmt.Errorf("cancel expense: %w", err)
		}
		return edited(cancelledText, false, nil), nil

	case event.HistoryWindow:
		return m.showHistory(ctx, profile, cb.Window)
	case event.HistoryBack:
		return edited(pickWindowText, false, windowKeyboard(event.HistoryWindow, event.HistoryCancel, event.HistoryWindows)), nil
	case event.StatsWindow:
		return m.showStats(ctx, profile, cb.Window)
	case event.StatsBack:
		return edited(pickWindowText, false, windowKeyboard(event.StatsWindow, event.StatsCancel, event.StatsWindows)), nil

	case event.DeleteRecord:
		return m.deleteRecord(ctx, profile, cb.SortKey)

	case event.CategoriesAdd, event.CategoriesRemove, event.CategoriesReset, event.SettingsCategories:
		active, err := m.premium.IsActive(ctx, profile)
		if err != nil {
			return event.Response{}, fmt.Errorf("check premium: %w", err)
		}
		if !active {
			return premiumRequired(true), nil
		}
		return m.manageCategories(ctx, profile, cb)

	case event.SettingsAI:
		enabled, err := m.toggleAI(ctx, profile)
		if err != nil {
			return event.Response{}, err
		}
		profile.ArtificialIntelligence = enabled
		resp := event.Response{Replies: []event.Reply{settingsMenu(profile, true)}}
		resp.CallbackText = "AI categorization " + onOff(enabled, "on", "off")
		return resp, nil

	case event.SettingsReminders:
		enabled := !profile.DailyReminders
		if err := m.profiles.SetReminders(ctx, profile.Key(), enabled); err != nil {
			return event.Response{}, fmt.Errorf("toggle reminders: %w", err)
		}
		profile.DailyReminders = enabled
		resp := event.Response{Replies: []event.Reply{settingsMenu(profile, true)}}
		resp.CallbackText = "Daily reminders " + onOff(enabled, "on", "off")
		return resp, nil

	case event.PremiumShow:
		reply, err := m.subscriptionView(ctx, profile, true)
		if err != nil {
			return event.Response{}, err
		}
		return event.Response{Replies: []event.Reply{reply}}, nil
	case event.PremiumPlan:
		plan, ok := premium.Lookup(cb.Plan)
		if !ok {
			return toast(unknownPlanToast), nil
		}
		invoice := plan.Invoice()
		return event.Response{Replies: []event.Reply{{Invoice: &invoice}}}, nil

	case event.HistoryCancel, event.StatsCancel, event.DeleteCancel,
		event.CategoriesCancel, event.SettingsCancel, event.PremiumCancel:
		return edited(cancelledText, false, nil), nil

	default:
		return edited(staleButtonText, false, nil), nil
	}
}

// confirmCategory turns the pending action into a record. The record is
// written before the pending slot is cleared so a failed write keeps it.
func (m *Machine) confirmCategory(ctx context.Context, profile domain.UserProfile, categoryID int) (event.Response, error) {
	pending := profile.PendingAction
	if pending == nil {
		resp := edited(nothingPendingText, false, nil)
		resp.CallbackText = nothingPendingToast
		return resp, nil
	}

	chosen, ok := profile.CategorySet().Lookup(categoryID)
	if !ok || !chosen.Active || categoryID == domain.CategoryIncome {
		return edited(unavailableCatText, false, categoryKeyboard(profile)), nil
	}

	record := m.newRecord(profile, pending.Amount, categoryID, pending.Description, pending.IsIncome)
	if err := m.insert(ctx, record); err != nil {
		return event.Response{}, err
	}

	if err := m.profiles.ClearPending(ctx, profile.Key()); err != nil {
		m.logger.WithFields(logging.Fields{
			"event":    "pending_not_cleared",
			"user_id":  profile.UserID,
			"sort_key": record.SortKey,
		}).WithError(err).Warn("record written but pending action kept")
	}

	return edited(loggedText(pending.Amount, chosen.Name), false, nil), nil
}

func (m *Machine) localNow(profile domain.UserProfile) time.Time {
	return timeutil.NowInZone(m.clock, profile.Timezone)
}

func (m *Machine) showHistory(ctx context.Context, profile domain.UserProfile, w event.Window) (event.Response, error) {
	start, end := WindowRange(w, m.localNow(profile))
	records, err := m.ledger.QueryRange(ctx, profile.UserID, start, end, false)
	if err != nil {
		return event.Response{}, err
	}
	return edited(renderHistory(w, profile, records), true, backKeyboard(event.HistoryBack)), nil
}

func (m *Machine) showStats(ctx context.Context, profile domain.UserProfile, w event.Window) (event.Response, error) {
	start, end := WindowRange(w, m.localNow(profile))
	records, err := m.ledger.QueryRange(ctx, profile.UserID, start, end, true)
	if err != nil {
		return event.Response{}, err
	}
	return edited(renderStats(w, Summarize(profile, records)), true, backKeyboard(event.StatsBack)), nil
}

func (m *Machine) deleteRecord(ctx context.Context, profile domain.UserProfile, sortKey string) (event.Response, error) {
	record, err := m.ledger.Get(ctx, profile.UserID, sortKey)
	if errors.Is(err, store.ErrRecordNotFound) {
		return edited(alreadyDeletedText, false, nil), nil
	}
	if err != nil {
		return event.Response{}, err
	}

	if _, err := m.ledger.Delete(ctx, profile.UserID, sortKey); err != nil {
		return event.Response{}, err
	}
	return edited("🗑 <b>Deleted</b>:\n"+recordLine(profile, record), true, nil), nil
}

func (m *Machine) manageCategories(ctx context.Context, profile domain.UserProfile, cb event.Callback) (event.Response, error) {
	switch cb.Kind {
	case event.CategoriesAdd:
		if err := m.profiles.SetStatus(ctx, profile.Key(), domain.StatusAwaitingCategoryName); err != nil {
			return event.Response{}, fmt.Errorf("await category name: %w", err)
		}
		return edited(categoryNamePrompt, false, nil), nil

	case event.CategoriesRemove:
		removed, err := m.categories.DeactivateCategory(ctx, profile, cb.CategoryID)
		switch {
		case errors.Is(err, category.ErrProtected):
			return toast(protectedCatToast), nil
		case errors.Is(err, category.ErrUnknownCategory):
			return toast(unknownCatToast), nil
		case err != nil:
			return event.Response{}, err
		}
		profile.Categories = profile.CategorySet().Clone()
		profile.Categories[domain.CategoryKey(cb.CategoryID)] = removed
		resp := event.Response{Replies: []event.Reply{categoriesMenu(profile, true)}}
		resp.CallbackText = "Removed " + removed.Name
		return resp, nil

	case event.CategoriesReset:
		if err := m.categories.ResetToDefault(ctx, profile); err != nil {
			return event.Response{}, err
		}
		profile.Categories = domain.NewDefaultCategoryMap()
		resp := event.Response{Replies: []event.Reply{categoriesMenu(profile, true)}}
		resp.CallbackText = "Categories reset"
		return resp, nil

	default:
		return event.Response{Replies: []event.Reply{categoriesMenu(profile, true)}}, nil
	}
}
