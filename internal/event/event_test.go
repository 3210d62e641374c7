package event

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFromTextClassifiesCommands(t *testing.T) {
	sender := Sender{UserID: 1}

	tests := []struct {
		text     string
		wantKind Kind
		wantName string
		wantArgs int
	}{
		{"50 groceries", KindText, "", 0},
		{"/last 8", KindCommand, "last", 1},
		{"/Stats@expense_bot", KindCommand, "stats", 0},
		{"  /export xlsx ", KindCommand, "export", 1},
		{"/", KindText, "", 0},
	}

	for _, tt := range tests {
		got := FromText(sender, 10, tt.text)
		if got.Kind() != tt.wantKind {
			t.Fatalf("FromText(%q) kind = %s, want %s", tt.text, got.Kind(), tt.wantKind)
		}
		if cmd, ok := got.(Command); ok {
			if cmd.Name != tt.wantName || len(cmd.Args) != tt.wantArgs {
				t.Fatalf("FromText(%q) = %+v", tt.text, cmd)
			}
		}
		if got.From().UserID != 1 {
			t.Fatalf("expected sender to be kept")
		}
	}
}

func TestIsPayment(t *testing.T) {
	if !IsPayment(PreCheckout{}) || !IsPayment(SuccessfulPayment{}) {
		t.Fatalf("expected purchase events to be payments")
	}
	if IsPayment(TextMessage{}) || IsPayment(CallbackQuery{}) || IsPayment(Command{}) {
		t.Fatalf("expected non-purchase events not to be payments")
	}
}

func TestParseCallbackRoundTrips(t *testing.T) {
	callbacks := []Callback{
		{Kind: ExpenseCategory, CategoryID: 5},
		{Kind: ExpenseCancel},
		{Kind: HistoryWindow, Window: WindowPrevMonth},
		{Kind: StatsWindow, Window: WindowAll},
		{Kind: DeleteRecord, SortKey: "1717200000_abcdefg"},
		{Kind: CategoriesRemove, CategoryID: 101},
		{Kind: SettingsAI},
		{Kind: SettingsReminders},
		{Kind: PremiumPlan, Plan: "plan_3m"},
	}

	for _, cb := range callbacks {
		token := cb.Encode()
		if len(token) > 64 {
			t.Fatalf("token %q exceeds callback data limit", token)
		}
		parsed, err := ParseCallback(token)
		if err != nil {
			t.Fatalf("ParseCallback(%q) returned error: %v", token, err)
		}
		if parsed != cb {
			t.Fatalf("round trip of %q = %+v, want %+v", token, parsed, cb)
		}
	}
}

func TestParseCallbackRejectsUnknownTokens(t *testing.T) {
	for _, data := range []string{
		"",
		"cat_5",
		"expenses:category:abc",
		"expenses:category:-1",
		"history:window:year",
		"stats:window:prev_month",
		"delete:record",
		"expenses:cancel:extra",
		"premium:plan",
	} {
		if _, err := ParseCallback(data); !errors.Is(err, ErrUnknownCallback) {
			t.Fatalf("ParseCallback(%q) error = %v, want ErrUnknownCallback", data, err)
		}
	}
}

func TestFromCallbackKeepsParseError(t *testing.T) {
	cb := FromCallback(Sender{UserID: 1}, "q", 3, "bogus")
	if cb.ParseErr == nil || cb.Callback.Kind != CallbackUnknown {
		t.Fatalf("expected parse error for bogus data, got %+v", cb)
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if Truncate(short) != short {
		t.Fatalf("expected short text unchanged")
	}

	long := strings.Repeat("é", MaxMessageLength+10)
	got := Truncate(long)
	if utf8.RuneCountInString(got) != MaxMessageLength {
		t.Fatalf("expected %d characters, got %d", MaxMessageLength, utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis marker")
	}
}

func TestTruncateCountsUTF16Units(t *testing.T) {
	if got := TextLength("a🍕é"); got != 4 {
		t.Fatalf("expected 4 code units, got %d", got)
	}

	pizzas := strings.Repeat("🍕", 3000)
	got := Truncate(pizzas)
	if TextLength(got) > MaxMessageLength {
		t.Fatalf("expected at most %d code units, got %d", MaxMessageLength, TextLength(got))
	}
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "🍕…") {
		t.Fatalf("expected whole emoji before the ellipsis, got suffix %q", got[len(got)-8:])
	}
	if n := strings.Count(got, "🍕"); n != (MaxMessageLength-1)/2 {
		t.Fatalf("expected %d emoji kept, got %d", (MaxMessageLength-1)/2, n)
	}
}
