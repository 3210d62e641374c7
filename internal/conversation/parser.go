package conversation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"expense_tracker_bot/internal/domain"
)

// MaxMessageLength bounds free-text entries; longer messages are rejected.
const MaxMessageLength = 100

var (
	// ErrMessageTooLong rejects entries of MaxMessageLength characters or more.
	ErrMessageTooLong = errors.New("message is too long")
	// ErrAmountBothEnds rejects entries with an amount at both ends.
	ErrAmountBothEnds = errors.New("amount at both ends")
	// ErrNoAmount rejects entries without an amount at either end.
	ErrNoAmount = errors.New("no amount found")
)

var amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// Entry is a parsed "amount description" message.
type Entry struct {
	Amount      domain.Money
	Description string
	IsIncome    bool
}

// ParseEntry reads an amount from either end of the message. A leading "+"
// on the amount marks income.
func ParseEntry(text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) >= MaxMessageLength {
		return Entry{}, ErrMessageTooLong
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return Entry{}, ErrNoAmount
	}

	first := isAmount(words[0])
	last := isAmount(words[len(words)-1])

	var raw, description string
	switch {
	case len(words) == 1 && first:
		raw = words[0]
	case len(words) == 1:
		return Entry{}, ErrNoAmount
	case first && last:
		return Entry{}, ErrAmountBothEnds
	case first:
		raw, description = words[0], strings.Join(words[1:], " ")
	case last:
		raw, description = words[len(words)-1], strings.Join(words[:len(words)-1], " ")
	default:
		return Entry{}, ErrNoAmount
	}

	amount, err := domain.ParseMoney(raw)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Amount:      amount,
		Description: description,
		IsIncome:    strings.HasPrefix(raw, "+"),
	}, nil
}

func isAmount(word string) bool {
	return amountPattern.MatchString(word)
}
