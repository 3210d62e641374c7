package owner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"expense_tracker_bot/internal/dispatch"
	"expense_tracker_bot/internal/event"
)

type fakeSender struct {
	calls []*bot.SendMessageParams
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: len(f.calls)}, nil
}

func TestNotifySendsEscapedReportToOwner(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	sender := &fakeSender{}
	notifier := NewNotifier(sender, 999, logrus.NewEntry(hookLogger))

	err := notifier.Notify(context.Background(), dispatch.Fault{
		Kind:   event.KindCallback,
		UserID: 7,
		Err:    errors.New("insert <record>: duplicate key"),
	})
	if err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}

	if len(sender.calls) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.calls))
	}
	params := sender.calls[0]
	if params.ChatID != int64(999) {
		t.Fatalf("expected owner chat 999, got %v", params.ChatID)
	}
	if params.ParseMode != models.ParseModeHTML {
		t.Fatalf("expected HTML parse mode, got %q", params.ParseMode)
	}
	for _, want := range []string{"Event failed", "<code>callback</code>", "<code>7</code>", "insert &lt;record&gt;: duplicate key"} {
		if !strings.Contains(params.Text, want) {
			t.Fatalf("expected report to contain %q, got %q", want, params.Text)
		}
	}
}

func TestNotifyPropagatesSendError(t *testing.T) {
	sendErr := errors.New("forbidden")
	notifier := NewNotifier(&fakeSender{err: sendErr}, 999, nil)

	err := notifier.Notify(context.Background(), dispatch.Fault{Kind: event.KindText, UserID: 1})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNotifyRequiresOwnerAndContext(t *testing.T) {
	sender := &fakeSender{}

	if err := NewNotifier(sender, 0, nil).Notify(context.Background(), dispatch.Fault{}); err == nil {
		t.Fatalf("expected error without owner id")
	}

	var nilCtx context.Context
	if err := NewNotifier(sender, 1, nil).Notify(nilCtx, dispatch.Fault{}); err == nil {
		t.Fatalf("expected error without context")
	}

	var nilNotifier *Notifier
	if err := nilNotifier.Notify(context.Background(), dispatch.Fault{}); err == nil {
		t.Fatalf("expected error for nil notifier")
	}

	if len(sender.calls) != 0 {
		t.Fatalf("expected no messages, got %d", len(sender.calls))
	}
}

func TestFormatFaultBoundsErrorAndMarksPanics(t *testing.T) {
	report := FormatFault(dispatch.Fault{
		Kind:   event.KindText,
		UserID: 3,
		Err:    errors.New(strings.Repeat("x", 5000)),
		Panic:  true,
	})

	if !strings.Contains(report, "Panic recovered") {
		t.Fatalf("expected panic title, got %q", report)
	}
	if utf8.RuneCountInString(report) > 1200 {
		t.Fatalf("expected bounded report, got %d characters", utf8.RuneCountInString(report))
	}
	if !strings.Contains(report, "…") {
		t.Fatalf("expected truncation marker")
	}
}
