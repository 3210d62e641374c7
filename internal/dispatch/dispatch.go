// Package dispatch runs every inbound event through the middleware chain:
// recovery, profile registration, the daily rate gate and finally the
// conversation machine.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/event"
	"expense_tracker_bot/internal/feature/user"
	"expense_tracker_bot/internal/logging"
	"expense_tracker_bot/internal/ratelimit"
)

const (
	defaultEventTimeout = 15 * time.Second
	notifyTimeout       = 5 * time.Second
)

// GenericFailureText is all a user ever sees of an internal failure.
const GenericFailureText = "⚠️ Something went wrong. Please try again later."

// Registrar creates a profile on first contact.
type Registrar interface {
	EnsureProfile(ctx context.Context, identity user.Identity) (bool, error)
}

// ProfileLoader reads the current profile.
type ProfileLoader interface {
	Get(ctx context.Context, key domain.ProfileKey) (domain.UserProfile, error)
}

// Gate decides whether a user may make another request today.
type Gate interface {
	Check(ctx context.Context, profile domain.UserProfile) (ratelimit.Verdict, error)
}

// Handler is the innermost event handler.
type Handler interface {
	Handle(ctx context.Context, profile domain.UserProfile, ev event.Event) (event.Response, error)
}

// Fault is what the operator learns about a failed event: its kind, the user
// and the error. The raw event is never forwarded.
type Fault struct {
	Kind   event.Kind
	UserID int64
	Err    error
	Panic  bool
}

// Notifier forwards faults to the operator.
type Notifier interface {
	Notify(ctx context.Context, fault Fault) error
}

// Request travels down the middleware chain.
type Request struct {
	Event   event.Event
	Profile domain.UserProfile
	Logger  *logrus.Entry
}

// Next is a step of the chain.
type Next func(ctx context.Context, req *Request) (event.Response, error)

// Middleware wraps a step.
type Middleware func(Next) Next

// Options configures a Dispatcher. Timeout bounds one event; zero uses the
// default.
type Options struct {
	Registrar Registrar
	Profiles  ProfileLoader
	Gate      Gate
	Handler   Handler
	Notifier  Notifier
	Logger    *logrus.Entry
	Timeout   time.Duration
}

// Dispatcher owns the assembled chain.
type Dispatcher struct {
	chain    Next
	notifier Notifier
	logger   *logrus.Entry
	timeout  time.Duration
}

// New assembles the chain. Notifier is optional.
func New(opts Options) (*Dispatcher, error) {
	switch {
	case opts.Registrar == nil:
		return nil, errors.New("registrar is required")
	case opts.Profiles == nil:
		return nil, errors.New("profile loader is required")
	case opts.Gate == nil:
		return nil, errors.New("rate gate is required")
	case opts.Handler == nil:
		return nil, errors.New("handler is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Logger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultEventTimeout
	}

	d := &Dispatcher{
		notifier: opts.Notifier,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
	}
	d.chain = Chain(handle(opts.Handler),
		d.recoverer,
		register(opts.Registrar, opts.Profiles),
		rateGate(opts.Gate),
	)
	return d, nil
}

// Chain applies middlewares so the first one listed runs outermost.
func Chain(final Next, middlewares ...Middleware) Next {
	for i := len(middlewares) - 1; i >= 0; i-- {
		final = middlewares[i](final)
	}
	return final
}

// Dispatch handles one event. It never returns an error or panics; failures
// become a generic reply and an operator notification.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) event.Response {
	if d == nil || d.chain == nil {
		return failureResponse(ev)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev == nil {
		return event.Empty()
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sender := ev.From()
	req := &Request{
		Event: ev,
		Logger: logging.Enrich(d.logger, logging.Context{
			UserID: sender.UserID,
			BotID:  sender.BotID,
			ChatID: sender.ChatID,
			Event:  string(ev.Kind()),
		}),
	}

	resp, err := d.chain(ctx, req)
	if err != nil {
		return failureResponse(ev)
	}
	return resp
}

// recoverer turns panics and returned errors into a generic reply, logs them
// and notifies the operator.
func (d *Dispatcher) recoverer(next Next) Next {
	return func(ctx context.Context, req *Request) (resp event.Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				panicErr := fmt.Errorf("panic: %v", r)
				req.Logger.WithFields(logging.Fields{
					"event": "dispatch_panic",
					"stack": string(debug.Stack()),
				}).WithError(panicErr).Error("recovered from panic while handling event")
				d.notify(req, panicErr, true)
				resp, err = failureResponse(req.Event), nil
			}
		}()

		resp, err = next(ctx, req)
		if err != nil {
			req.Logger.WithField("event", "dispatch_error").WithError(err).Error("event handling failed")
			d.notify(req, err, false)
			return failureResponse(req.Event), nil
		}
		return resp, nil
	}
}

func (d *Dispatcher) notify(req *Request, err error, panicked bool) {
	if d.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	fault := Fault{
		Kind:   req.Event.Kind(),
		UserID: req.Event.From().UserID,
		Err:    err,
		Panic:  panicked,
	}
	if notifyErr := d.notifier.Notify(ctx, fault); notifyErr != nil {
		req.Logger.WithField("event", "operator_notify_failed").WithError(notifyErr).Warn("could not notify operator")
	}
}

func register(registrar Registrar, profiles ProfileLoader) Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, req *Request) (event.Response, error) {
			sender := req.Event.From()
			identity := user.Identity{
				UserID:       sender.UserID,
				BotID:        sender.BotID,
				Username:     sender.Username,
				FirstName:    sender.FirstName,
				LanguageCode: sender.LanguageCode,
			}
			if _, err := registrar.EnsureProfile(ctx, identity); err != nil {
				return event.Response{}, fmt.Errorf("register user: %w", err)
			}

			profile, err := profiles.Get(ctx, domain.ProfileKey{UserID: sender.UserID, BotID: sender.BotID})
			if err != nil {
				return event.Response{}, fmt.Errorf("load profile: %w", err)
			}
			req.Profile = profile
			return next(ctx, req)
		}
	}
}

// rateGate counts the event against the daily allowance. Purchases bypass
// the gate entirely.
func rateGate(gate Gate) Middleware {
	return func(next Next) Next {
		return func(ctx context.Context, req *Request) (event.Response, error) {
			if event.IsPayment(req.Event) {
				return next(ctx, req)
			}

			verdict, err := gate.Check(ctx, req.Profile)
			if err != nil {
				return event.Response{}, err
			}

			switch verdict.Decision {
			case ratelimit.Allow:
				return next(ctx, req)
			case ratelimit.Warn:
				return event.HTML(ratelimit.WarningText(verdict.ResetIn)), nil
			default:
				return event.Empty(), nil
			}
		}
	}
}

func handle(h Handler) Next {
	return func(ctx context.Context, req *Request) (event.Response, error) {
		return h.Handle(ctx, req.Profile, req.Event)
	}
}

func failureResponse(ev event.Event) event.Response {
	switch ev.(type) {
	case event.PreCheckout:
		return event.Response{PreCheckout: &event.PreCheckoutAnswer{Error: GenericFailureText}}
	case event.CallbackQuery:
		resp := event.Text(GenericFailureText)
		resp.CallbackText = GenericFailureText
		return resp
	default:
		return event.Text(GenericFailureText)
	}
}
