// Package engine drives a bet request through the wagering platform steps.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// Session is the logical connection to the wagering platform
type Session struct {
	credentials   Credentials
	authenticated bool
}

// Engine executes bet requests one at a time against a single Session.
// Process, Login, Logout and TestConnection are serialized by an internal lock.
type Engine struct {
	mu       sync.Mutex
	session  Session
	decider  StepDecider
	observer Observer

	stepTimeout time.Duration
	now         func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithObserver sets the observer for progress and error events.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithStepTimeout bounds each step; a step running longer fails the request.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.stepTimeout = d }
}

// WithClock overrides time.Now for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine with an unauthenticated session.
func New(creds Credentials, decider StepDecider, opts ...Option) *Engine {
	if decider == nil {
		decider = AlwaysSucceed
	}
	e := &Engine{
		session:  Session{credentials: creds},
		decider:  decider,
		observer: SlogObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authenticated reports whether the session is logged in.
func (e *Engine) Authenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.authenticated
}

// Process runs one request to a terminal outcome. It never retries and never panics;
// any fault inside a step becomes a Failed outcome.
func (e *Engine) Process(ctx context.Context, req models.BetRequest) models.BetOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.progress(StepIdle, &req, fmt.Sprintf("Processing bet: %s - race %s - horse %s", req.RaceName, req.RaceNumber, req.Horse))

	if !e.session.authenticated {
		if err := e.login(ctx); err != nil {
			reason := ReasonLoginFailed
			var fault *faultError
			switch {
			case errors.Is(err, ErrMissingCredentials):
				reason = ReasonMissingCredentials
			case errors.As(err, &fault):
				reason = fault.Error()
			}
			e.fail(StepAuthenticating, &req, "Login failed, bet not processed: "+err.Error())
			return e.outcome(req, reason)
		}
	}

	for _, step := range betSteps {
		e.progress(step, &req, stepMessage(step, req))
		if err := e.call(ctx, step, req); err != nil {
			reason := classify(step, err)
			if errors.Is(err, ErrSessionExpired) {
				e.session.authenticated = false
			}
			e.fail(step, &req, fmt.Sprintf("Step %s failed: %v", step, err))
			return e.outcome(req, reason)
		}
	}

	e.progress(StepSucceeded, &req, "Bet placed successfully")
	return models.BetOutcome{
		Request:   req,
		Status:    models.OutcomeSuccess,
		Timestamp: e.now(),
	}
}

// Login authenticates the session. It fails fast with ErrMissingCredentials.
func (e *Engine) Login(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.login(ctx)
}

func (e *Engine) login(ctx context.Context) error {
	if !e.session.credentials.complete() {
		e.fail(StepAuthenticating, nil, "Credentials are not configured")
		return ErrMissingCredentials
	}

	e.progress(StepAuthenticating, nil, "Logging in as "+e.session.credentials.Username)
	if err := e.call(ctx, StepAuthenticating, models.BetRequest{}); err != nil {
		e.session.authenticated = false
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	e.session.authenticated = true
	e.progress(StepAuthenticating, nil, "Login successful")
	return nil
}

// Logout ends the session. Logging out an unauthenticated session is a no-op.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.authenticated {
		return nil
	}
	e.progress(StepLoggingOut, nil, "Logging out")
	if err := e.call(ctx, StepLoggingOut, models.BetRequest{}); err != nil {
		e.fail(StepLoggingOut, nil, "Logout failed: "+err.Error())
		return fmt.Errorf("logout: %w", err)
	}
	e.session.authenticated = false
	e.progress(StepLoggingOut, nil, "Logout successful")
	return nil
}

// TestConnection checks that the platform is reachable without placing a bet.
func (e *Engine) TestConnection(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.progress(StepNavigating, nil, "Testing connection to the betting platform")
	if err := e.call(ctx, StepNavigating, models.BetRequest{}); err != nil {
		e.fail(StepNavigating, nil, "Connection test failed: "+err.Error())
		return fmt.Errorf("connection test: %w", err)
	}
	e.progress(StepNavigating, nil, "Connection to the betting platform established")
	return nil
}

// call runs one decider step, converting panics and timeouts into errors.
// A timed out step is cancelled and waited for, so the decider never runs
// two steps at once.
func (e *Engine) call(ctx context.Context, step Step, req models.BetRequest) error {
	if e.stepTimeout <= 0 {
		return e.invoke(ctx, step, req)
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.invoke(stepCtx, step, req)
	}()

	select {
	case err := <-done:
		return e.stepResult(stepCtx, step, err)
	case <-stepCtx.Done():
	}

	// the step may have finished as the deadline fired
	select {
	case err := <-done:
		return e.stepResult(stepCtx, step, err)
	default:
	}

	cancel()
	<-done
	if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Step: step, After: e.stepTimeout}
	}
	return stepCtx.Err()
}

func (e *Engine) stepResult(stepCtx context.Context, step Step, err error) error {
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Step: step, After: e.stepTimeout}
	}
	return err
}

func (e *Engine) invoke(ctx context.Context, step Step, req models.BetRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &faultError{step: step, value: r}
		}
	}()

	err = e.decider.Decide(ctx, step, req, e.session.credentials)
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Step == StepIdle {
		return &StepError{Step: step, Reason: stepErr.Reason}
	}
	return err
}

func (e *Engine) outcome(req models.BetRequest, reason string) models.BetOutcome {
	e.emit(Event{Kind: EventError, Step: StepFailed, Message: "Bet failed: " + reason, Race: req.RaceName, Horse: req.Horse})
	return models.BetOutcome{
		Request:       req,
		Status:        models.OutcomeFailed,
		FailureReason: reason,
		Timestamp:     e.now(),
	}
}

func (e *Engine) progress(step Step, req *models.BetRequest, msg string) {
	e.emit(newEvent(EventProgress, step, req, msg))
}

func (e *Engine) fail(step Step, req *models.BetRequest, msg string) {
	e.emit(newEvent(EventError, step, req, msg))
}

// emit delivers an event; a misbehaving observer never changes the outcome.
func (e *Engine) emit(ev Event) {
	if e.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine observer panicked", "panic", r)
		}
	}()
	e.observer.Observe(ev)
}

func newEvent(kind EventKind, step Step, req *models.BetRequest, msg string) Event {
	ev := Event{Kind: kind, Step: step, Message: msg}
	if req != nil {
		ev.Race = req.RaceName
		ev.Horse = req.Horse
	}
	return ev
}

func stepMessage(step Step, req models.BetRequest) string {
	switch step {
	case StepNavigating:
		return "Navigating to the horse racing betting page"
	case StepSearchingRace:
		return fmt.Sprintf("Searching race: %s - number %s", req.RaceName, req.RaceNumber)
	case StepSearchingHorse:
		return "Searching horse: " + req.Horse
	case StepPlacingBet:
		return fmt.Sprintf("Placing %s bet at odds %s", req.BetType, req.Odds)
	}
	return step.String()
}
