package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CallbackKind is the closed set of button actions.
type CallbackKind int

const (
	CallbackUnknown CallbackKind = iota
	ExpenseCategory
	ExpenseCancel
	HistoryWindow
	HistoryBack
	HistoryCancel
	StatsWindow
	StatsBack
	StatsCancel
	DeleteRecord
	DeleteCancel
	CategoriesAdd
	CategoriesRemove
	CategoriesReset
	CategoriesCancel
	SettingsAI
	SettingsReminders
	SettingsCategories
	SettingsCancel
	PremiumShow
	PremiumPlan
	PremiumCancel
)

// Window identifies a reporting period.
type Window string

// History windows.
const (
	WindowToday     Window = "today"
	WindowWeek      Window = "week"
	WindowMonth     Window = "month"
	WindowPrevMonth Window = "prev_month"
	WindowYear      Window = "year"
	WindowAll       Window = "all"
)

// HistoryWindows are offered by /history.
var HistoryWindows = []Window{WindowToday, WindowWeek, WindowMonth, WindowPrevMonth}

// StatsWindows are offered by /stats.
var StatsWindows = []Window{WindowToday, WindowWeek, WindowMonth, WindowYear, WindowAll}

// Label renders a window for buttons and headers.
func (w Window) Label() string {
	switch w {
	case WindowToday:
		return "Today"
	case WindowWeek:
		return "This Week"
	case WindowMonth:
		return "This Month"
	case WindowPrevMonth:
		return "Previous Month"
	case WindowYear:
		return "This Year"
	case WindowAll:
		return "All Time"
	default:
		return string(w)
	}
}

// ErrUnknownCallback is returned for tokens outside the closed set.
var ErrUnknownCallback = errors.New("unknown callback")

// Callback is a parsed "<scope>:<action>[:<arg>]" token.
type Callback struct {
	Kind       CallbackKind
	CategoryID int
	Window     Window
	SortKey    string
	Plan       string
}

type route struct {
	scope  string
	action string
	kind   CallbackKind
}

var routes = []route{
	{"expenses", "category", ExpenseCategory},
	{"expenses", "cancel", ExpenseCancel},
	{"history", "window", HistoryWindow},
	{"history", "back", HistoryBack},
	{"history", "cancel", HistoryCancel},
	{"stats", "window", StatsWindow},
	{"stats", "back", StatsBack},
	{"stats", "cancel", StatsCancel},
	{"delete", "record", DeleteRecord},
	{"delete", "cancel", DeleteCancel},
	{"categories", "add", CategoriesAdd},
	{"categories", "remove", CategoriesRemove},
	{"categories", "reset", CategoriesReset},
	{"categories", "cancel", CategoriesCancel},
	{"settings", "ai", SettingsAI},
	{"settings", "notify", SettingsReminders},
	{"settings", "categories", SettingsCategories},
	{"settings", "cancel", SettingsCancel},
	{"premium", "show", PremiumShow},
	{"premium", "plan", PremiumPlan},
	{"premium", "cancel", PremiumCancel},
}

// ParseCallback decodes a callback token.
func ParseCallback(data string) (Callback, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}

	kind := CallbackUnknown
	for _, r := range routes {
		if r.scope == parts[0] && r.action == parts[1] {
			kind = r.kind
			break
		}
	}
	if kind == CallbackUnknown {
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}

	arg := ""
	if len(parts) == 3 {
		arg = parts[2]
	}

	cb := Callback{Kind: kind}
	switch kind {
	case ExpenseCategory, CategoriesRemove:
		id, err := strconv.Atoi(arg)
		if err != nil || id < 0 {
			return Callback{}, fmt.Errorf("%w: bad category id in %q", ErrUnknownCallback, data)
		}
		cb.CategoryID = id
	case HistoryWindow:
		if !containsWindow(HistoryWindows, Window(arg)) {
			return Callback{}, fmt.Errorf("%w: bad history window in %q", ErrUnknownCallback, data)
		}
		cb.Window = Window(arg)
	case StatsWindow:
		if !containsWindow(StatsWindows, Window(arg)) {
			return Callback{}, fmt.Errorf("%w: bad stats window in %q", ErrUnknownCallback, data)
		}
		cb.Window = Window(arg)
	case DeleteRecord:
		if arg == "" {
			return Callback{}, fmt.Errorf("%w: missing sort key in %q", ErrUnknownCallback, data)
		}
		cb.SortKey = arg
	case PremiumPlan:
		if arg == "" {
			return Callback{}, fmt.Errorf("%w: missing plan in %q", ErrUnknownCallback, data)
		}
		cb.Plan = arg
	default:
		if arg != "" {
			return Callback{}, fmt.Errorf("%w: unexpected argument in %q", ErrUnknownCallback, data)
		}
	}

	return cb, nil
}

// Encode renders the callback as a token accepted by ParseCallback.
func (c Callback) Encode() string {
	for _, r := range routes {
		if r.kind != c.Kind {
			continue
		}
		base := r.scope + ":" + r.action
		switch c.Kind {
		case ExpenseCategory, CategoriesRemove:
			return base + ":" + strconv.Itoa(c.CategoryID)
		case HistoryWindow, StatsWindow:
			return base + ":" + string(c.Window)
		case DeleteRecord:
			return base + ":" + c.SortKey
		case PremiumPlan:
			return base + ":" + c.Plan
		default:
			return base
		}
	}
	return ""
}

func containsWindow(windows []Window, w Window) bool {
	for _, candidate := range windows {
		if candidate == w {
			return true
		}
	}
	return false
}
