// Package schedule runs the periodic broadcasts: the monthly stats report to
// every user and the opt-in daily reminder.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/store"
)

// Job names a broadcast.
type Job string

const (
	JobMonthlyReport Job = "monthly_report"
	JobDailyReminder Job = "daily_reminder"
)

const (
	defaultChunkSize  = 20
	defaultChunkPause = 2 * time.Second

	monthlyHeader = "🗓 <b>Your monthly summary</b>\n\n"
	reminderText  = "📝 Don't forget to add any pending expenses for today!\nYou can turn off daily reminders in /settings."
)

// ErrUnknownJob is returned for a trigger naming no known job.
var ErrUnknownJob = errors.New("unknown job")

// Trigger is the scheduled event payload, e.g. {"job":"monthly_report"}.
type Trigger struct {
	Job Job `json:"job"`
}

// Result tallies one run. Blocked counts users who stopped the bot.
type Result struct {
	Job        Job `json:"job"`
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Blocked    int `json:"blocked"`
	Failed     int `json:"failed"`
}

// Audience enumerates the profiles of one bot.
type Audience interface {
	ForEach(ctx context.Context, filter store.AudienceFilter, fn func(domain.UserProfile) error) error
}

// Reporter renders a user's stats for a window.
type Reporter interface {
	PeriodReport(ctx context.Context, profile domain.UserProfile, w event.Window) (string, bool, error)
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Options configures a Runner. ChunkSize messages are sent between pauses
// to stay under the transport's broadcast limits.
type Options struct {
	BotID      int64
	Audience   Audience
	Reports    Reporter
	Sender     messageSender
	Logger     *logrus.Entry
	ChunkSize  int
	ChunkPause time.Duration
}

// Runner executes scheduled jobs.
type Runner struct {
	botID  int64
	users  Audience
	report Reporter
	sender messageSender
	logger *logrus.Entry
	chunk  int
	pause  time.Duration
	sleep  func(context.Context, time.Duration) error
}

// New validates the options.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Audience == nil:
		return nil, errors.New("audience is required")
	case opts.Reports == nil:
		return nil, errors.New("reporter is required")
	case opts.Sender == nil:
		return nil, errors.New("sender is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Logger()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkPause <= 0 {
		opts.ChunkPause = defaultChunkPause
	}

	return &Runner{
		botID:  opts.BotID,
		users:  opts.Audience,
		report: opts.Reports,
		sender: opts.Sender,
		logger: opts.Logger.WithField("component", "schedule"),
		chunk:  opts.ChunkSize,
		pause:  opts.ChunkPause,
		sleep:  sleepContext,
	}, nil
}

// Run executes the job named by the trigger. Per-user failures are counted
// and logged; only enumeration errors and cancellation fail the run.
func (r *Runner) Run(ctx context.Context, trigger Trigger) (Result, error) {
	if r == nil {
		return Result{}, errors.New("schedule runner is not initialized")
	}
	if ctx == nil {
		return Result{}, errors.New("context is required")
	}

	filter := store.AudienceFilter{BotID: r.botID}
	var compose func(context.Context, domain.UserProfile) (string, bool, error)

	switch trigger.Job {
	case JobMonthlyReport:
		compose = r.monthlyReport
	case JobDailyReminder:
		filter.RemindersOnly = true
		compose = func(context.Context, domain.UserProfile) (string, bool, error) {
			return reminderText, true, nil
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownJob, trigger.Job)
	}

	log := r.logger.WithField("job", string(trigger.Job))
	log.WithField("event", "schedule_job_started").Info("scheduled job started")

	result, err := r.broadcast(ctx, log, filter, compose)
	result.Job = trigger.Job

	fields := logging.Fields{
		"event":      "schedule_job_finished",
		"recipients": result.Recipients,
		"sent":       result.Sent,
		"skipped":    result.Skipped,
		"blocked":    result.Blocked,
		"failed":     result.Failed,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("scheduled job aborted")
		return result, err
	}
	log.WithFields(fields).Info("scheduled job finished")
	return result, nil
}

func (r *Runner) monthlyReport(ctx context.Context, profile domain.UserProfile) (string, bool, error) {
	text, ok, err := r.report.PeriodReport(ctx, profile, event.WindowPrevMonth)
	if err != nil || !ok {
		return "", ok, err
	}
	return monthlyHeader + text, true, nil
}

func (r *Runner) broadcast(
	ctx context.Context,
	log *logrus.Entry,
	filter store.AudienceFilter,
	compose func(context.Context, domain.UserProfile) (string, bool, error),
) (Result, error) {
	var result Result
	attempts := 0

	err := r.users.ForEach(ctx, filter, func(profile domain.UserProfile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Recipients++
		userLog := logging.Enrich(log, logging.Context{UserID: profile.UserID, BotID: profile.BotID})

		text, ok, err := compose(ctx, profile)
		if err != nil {
			result.Failed++
			userLog.WithError(err).WithField("event", "schedule_compose_failed").Warn("failed to build scheduled message")
			return nil
		}
		if !ok {
			result.Skipped++
			return nil
		}

		if attempts > 0 && attempts%r.chunk == 0 {
			if err := r.sleep(ctx, r.pause); err != nil {
				return err
			}
		}
		attempts++

		switch err := r.send(ctx, profile.UserID, text); {
		case err == nil:
			result.Sent++
		case errors.Is(err, bot.ErrorForbidden):
			result.Blocked++
			userLog.WithField("event", "schedule_recipient_blocked").Info("recipient blocked the bot")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			result.Failed++
			userLog.WithError(err).WithField("event", "schedule_send_failed").Warn("failed to send scheduled message")
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("broadcast: %w", err)
	}
	return result, nil
}

// send retries once after a flood-control reply, waiting as instructed.
func (r *Runner) send(ctx context.Context, chatID int64, text string) error {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      event.Truncate(text),
		ParseMode: models.ParseModeHTML,
	}

	_, err := r.sender.SendMessage(ctx, params)
	var limited *bot.TooManyRequestsError
	if errors.As(err, &limited) {
		if err := r.sleep(ctx, time.Duration(limited.RetryAfter)*time.Second); err != nil {
			return err
		}
		_, err = r.sender.SendMessage(ctx, params)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
