// Package event defines the inbound events the bot reacts to and the
// responses it hands back to the transport.
package event

import "strings"

// Kind names an event variant.
type Kind string

const (
	KindText        Kind = "text"
	KindCommand     Kind = "command"
	KindCallback    Kind = "callback"
	KindPreCheckout Kind = "pre_checkout"
	KindPayment     Kind = "payment"
)

// Sender identifies who an event came from.
type Sender struct {
	UserID       int64
	BotID        int64
	ChatID       int64
	Username     string
	FirstName    string
	LanguageCode string
}

// Event is one of TextMessage, Command, CallbackQuery, PreCheckout or
// SuccessfulPayment.
type Event interface {
	Kind() Kind
	From() Sender
	isEvent()
}

// TextMessage is free text typed by the user.
type TextMessage struct {
	Sender    Sender
	MessageID int
	Text      string
}

// Command is a "/name args..." message.
type Command struct {
	Sender    Sender
	MessageID int
	Name      string
	Args      []string
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	Sender    Sender
	QueryID   string
	MessageID int
	Data      string
	Callback  Callback
	// ParseErr is set when Data is not a known callback token.
	ParseErr error
}

// PreCheckout asks the bot to confirm a purchase before it is charged.
type PreCheckout struct {
	Sender   Sender
	QueryID  string
	Payload  string
	Currency string
	Total    int
}

// SuccessfulPayment reports a completed purchase.
type SuccessfulPayment struct {
	Sender   Sender
	Payload  string
	Currency string
	Total    int
	ChargeID string
}

func (e TextMessage) Kind() Kind       { return KindText }
func (e Command) Kind() Kind           { return KindCommand }
func (e CallbackQuery) Kind() Kind     { return KindCallback }
func (e PreCheckout) Kind() Kind       { return KindPreCheckout }
func (e SuccessfulPayment) Kind() Kind { return KindPayment }

func (e TextMessage) From() Sender       { return e.Sender }
func (e Command) From() Sender           { return e.Sender }
func (e CallbackQuery) From() Sender     { return e.Sender }
func (e PreCheckout) From() Sender       { return e.Sender }
func (e SuccessfulPayment) From() Sender { return e.Sender }

func (TextMessage) isEvent()       {}
func (Command) isEvent()           {}
func (CallbackQuery) isEvent()     {}
func (PreCheckout) isEvent()       {}
func (SuccessfulPayment) isEvent() {}

// IsPayment reports whether the event belongs to the purchase flow, which is
// never counted against the daily limit.
func IsPayment(e Event) bool {
	switch e.(type) {
	case PreCheckout, SuccessfulPayment:
		return true
	default:
		return false
	}
}

// FromText classifies a text message as a Command when it starts with "/",
// otherwise as a TextMessage. "/cmd@botname" is accepted.
func FromText(sender Sender, messageID int, text string) Event {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") || len(trimmed) == 1 {
		return TextMessage{Sender: sender, MessageID: messageID, Text: text}
	}

	fields := strings.Fields(trimmed)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	return Command{
		Sender:    sender,
		MessageID: messageID,
		Name:      strings.ToLower(name),
		Args:      fields[1:],
	}
}

// FromCallback builds a CallbackQuery and parses its token.
func FromCallback(sender Sender, queryID string, messageID int, data string) CallbackQuery {
	callback, err := ParseCallback(data)
	return CallbackQuery{
		Sender:    sender,
		QueryID:   queryID,
		MessageID: messageID,
		Data:      data,
		Callback:  callback,
		ParseErr:  err,
	}
}
