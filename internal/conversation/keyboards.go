package conversation

import (
	"fmt"

	"expense_tracker_bot/internal/category"
	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/premium"
)

const (
	categoryColumns = 3
	windowColumns   = 2
	menuColumns     = 2
)

func button(text string, kind event.CallbackKind) event.Button {
	return event.Button{Text: text, Callback: event.Callback{Kind: kind}}
}

func cancelRow(kind event.CallbackKind) []event.Button {
	return event.Row(button("🚫 Cancel", kind))
}

func chunk(buttons []event.Button, columns int) [][]event.Button {
	rows := make([][]event.Button, 0, (len(buttons)+columns-1)/columns)
	for start := 0; start < len(buttons); start += columns {
		end := start + columns
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[start:end])
	}
	return rows
}

func categoryKeyboard(profile domain.UserProfile) [][]event.Button {
	choices := category.ExpenseChoices(profile)
	buttons := make([]event.Button, 0, len(choices))
	for _, choice := range choices {
		buttons = append(buttons, event.Button{
			Text:     choice.Name,
			Callback: event.Callback{Kind: event.ExpenseCategory, CategoryID: choice.ID},
		})
	}
	return append(chunk(buttons, categoryColumns), cancelRow(event.ExpenseCancel))
}

func windowKeyboard(kind, cancel event.CallbackKind, windows []event.Window) [][]event.Button {
	buttons := make([]event.Button, 0, len(windows))
	for _, w := range windows {
		buttons = append(buttons, event.Button{
			Text:     w.Label(),
			Callback: event.Callback{Kind: kind, Window: w},
		})
	}
	return append(chunk(buttons, windowColumns), cancelRow(cancel))
}

func backKeyboard(back event.CallbackKind) [][]event.Button {
	return [][]event.Button{event.Row(button("⬅️ Back", back))}
}

func deleteKeyboard(profile domain.UserProfile, records []domain.ExpenseRecord) [][]event.Button {
	rows := make([][]event.Button, 0, len(records)+1)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		rows = append(rows, event.Row(event.Button{
			Text:     buttonLabel(profile, rec),
			Callback: event.Callback{Kind: event.DeleteRecord, SortKey: rec.SortKey},
		}))
	}
	return append(rows, cancelRow(event.DeleteCancel))
}

func categoriesKeyboard(profile domain.UserProfile) [][]event.Button {
	choices := category.ExpenseChoices(profile)
	buttons := make([]event.Button, 0, len(choices))
	for _, choice := range choices {
		if category.IsProtected(choice.ID, choice.Name) {
			continue
		}
		buttons = append(buttons, event.Button{
			Text:     "❌ " + choice.Name,
			Callback: event.Callback{Kind: event.CategoriesRemove, CategoryID: choice.ID},
		})
	}
	rows := chunk(buttons, menuColumns)
	rows = append(rows,
		event.Row(button("➕ Add", event.CategoriesAdd), button("♻️ Reset", event.CategoriesReset)),
		cancelRow(event.CategoriesCancel),
	)
	return rows
}

func settingsKeyboard(profile domain.UserProfile) [][]event.Button {
	return [][]event.Button{
		event.Row(button("🤖 AI: "+onOff(!profile.ArtificialIntelligence, "turn on", "turn off"), event.SettingsAI)),
		event.Row(button("🔔 Reminders: "+onOff(!profile.DailyReminders, "turn on", "turn off"), event.SettingsReminders)),
		event.Row(button("🗂 Categories", event.SettingsCategories), button("💎 Premium", event.PremiumShow)),
		cancelRow(event.SettingsCancel),
	}
}

func plansKeyboard() [][]event.Button {
	rows := make([][]event.Button, 0, len(premium.Plans)+1)
	for _, plan := range premium.Plans {
		rows = append(rows, event.Row(event.Button{
			Text:     fmt.Sprintf("⭐️ %s - %d %s", plan.Invoice().Label, plan.Stars, premium.Currency),
			Callback: event.Callback{Kind: event.PremiumPlan, Plan: plan.ID},
		}))
	}
	return append(rows, cancelRow(event.PremiumCancel))
}

func onOff(flag bool, on, off string) string {
	if flag {
		return on
	}
	return off
}
