package conversation

import (
	"errors"
	"strings"
	"testing"

	"expense_tracker_bot/internal/domain"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		amount      string
		description string
		income      bool
		wantErr     error
	}{
		{name: "amount first", text: "50 groceries", amount: "50", description: "groceries"},
		{name: "amount last", text: "coffee beans 12.5", amount: "12.5", description: "coffee beans"},
		{name: "income", text: "+1000 bonus", amount: "1000", description: "bonus", income: true},
		{name: "income last", text: "salary +2500", amount: "2500", description: "salary", income: true},
		{name: "lone amount", text: "  42  ", amount: "42"},
		{name: "lone income", text: "+7", amount: "7", income: true},
		{name: "leading dot", text: ".5 gum", amount: "0.5", description: "gum"},
		{name: "negative", text: "-3 refund", amount: "-3", description: "refund"},
		{name: "both ends", text: "10 apples 20", wantErr: ErrAmountBothEnds},
		{name: "no amount", text: "just words", wantErr: ErrNoAmount},
		{name: "lone word", text: "groceries", wantErr: ErrNoAmount},
		{name: "empty", text: "   ", wantErr: ErrNoAmount},
		{name: "two points", text: "1.2.3 thing", wantErr: ErrNoAmount},
		{name: "double sign", text: "+-5 thing", wantErr: ErrNoAmount},
		{name: "too many digits", text: strings.Repeat("1", 40) + " yacht", wantErr: domain.ErrAmountTooLarge},
		{name: "max digits", text: strings.Repeat("9", 34) + " yacht", amount: strings.Repeat("9", 34), description: "yacht"},
		{name: "too long", text: "5 " + strings.Repeat("x", 98), wantErr: ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v (%+v)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntry returned error: %v", err)
			}
			if got.Amount.String() != tt.amount {
				t.Fatalf("expected amount %s, got %s", tt.amount, got.Amount.String())
			}
			if got.Description != tt.description || got.IsIncome != tt.income {
				t.Fatalf("unexpected entry %+v", got)
			}
		})
	}
}

func TestParseEntryAcceptsJustUnderLimit(t *testing.T) {
	text := "5 " + strings.Repeat("x", MaxMessageLength-3)
	if _, err := ParseEntry(text); err != nil {
		t.Fatalf("expected %d characters to be accepted, got %v", len(text), err)
	}
}
