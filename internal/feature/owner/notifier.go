// Package owner reports failed events to the configured bot owner's chat.
package owner

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/dispatch"
	"expense_tracker_bot/internal/logging"
)

const maxErrorRunes = 1000

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier sends dispatcher faults to the owner chat. Only the event kind,
// the user id and the error text are forwarded.
type Notifier struct {
	sender  messageSender
	ownerID int64
	logger  *logrus.Entry
}

// NewNotifier constructs a Notifier for the provided owner chat.
func NewNotifier(sender messageSender, ownerID int64, logger *logrus.Entry) *Notifier {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Notifier{
		sender:  sender,
		ownerID: ownerID,
		logger:  logger,
	}
}

// Notify delivers one fault.
func (n *Notifier) Notify(ctx context.Context, fault dispatch.Fault) error {
	if n == nil || n.sender == nil {
		return errors.New("owner notifier is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if n.ownerID == 0 {
		return errors.New("owner id is required")
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.ownerID,
		Text:      FormatFault(fault),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("notify owner: %w", err)
	}

	n.logger.WithFields(logging.Fields{
		"event":      "owner_notified",
		"fault_kind": fault.Kind,
		"user_id":    fault.UserID,
	}).Debug("sent fault report to owner")

	return nil
}

// FormatFault renders the owner-facing HTML report.
func FormatFault(fault dispatch.Fault) string {
	title := "🚨 <b>Event failed</b>"
	if fault.Panic {
		title = "🚨 <b>Panic recovered</b>"
	}

	errText := "unknown error"
	if fault.Err != nil {
		errText = fault.Err.Error()
	}
	if utf8.RuneCountInString(errText) > maxErrorRunes {
		errText = string([]rune(errText)[:maxErrorRunes]) + "…"
	}

	var b strings.Builder
	b.WriteString(title)
	fmt.Fprintf(&b, "\nKind: <code>%s</code>", html.EscapeString(string(fault.Kind)))
	fmt.Fprintf(&b, "\nUser: <code>%d</code>", fault.UserID)
	fmt.Fprintf(&b, "\nError: <code>%s</code>", html.EscapeString(errText))
	return b.String()
}
