package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// Step is a state of the per-request state machine
type Step int

const (
	StepIdle Step = iota
	StepAuthenticating
	StepNavigating
	StepSearchingRace
	StepSearchingHorse
	StepPlacingBet
	StepSucceeded
	StepFailed
	StepLoggingOut
)

var stepNames = map[Step]string{
	StepIdle:           "idle",
	StepAuthenticating: "authenticating",
	StepNavigating:     "navigating",
	StepSearchingRace:  "searching_race",
	StepSearchingHorse: "searching_horse",
	StepPlacingBet:     "placing_bet",
	StepSucceeded:      "succeeded",
	StepFailed:         "failed",
	StepLoggingOut:     "logging_out",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// betSteps run in this order once the session is authenticated
var betSteps = []Step{StepNavigating, StepSearchingRace, StepSearchingHorse, StepPlacingBet}

// Failure reasons stored in history, "Erro - <reason>"
const (
	ReasonMissingCredentials = "Credenciais não configuradas"
	ReasonLoginFailed        = "Falha no login"
	ReasonNavigationFailed   = "Falha ao navegar até a página de apostas"
	ReasonRaceNotFound       = "Corrida não encontrada"
	ReasonHorseNotFound      = "Cavalo não encontrado"
	ReasonBetNotPlaced       = "Falha ao realizar aposta"
)

var defaultReasons = map[Step]string{
	StepAuthenticating: ReasonLoginFailed,
	StepNavigating:     ReasonNavigationFailed,
	StepSearchingRace:  ReasonRaceNotFound,
	StepSearchingHorse: ReasonHorseNotFound,
	StepPlacingBet:     ReasonBetNotPlaced,
}

var (
	// ErrStepFailed is what a decider returns for a plain modeled failure.
	ErrStepFailed = errors.New("step failed")
	// ErrSessionExpired from a decider logs the session out after the request fails.
	ErrSessionExpired = errors.New("session expired")
	// ErrMissingCredentials is returned by Login when username or password is empty.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrLoginFailed wraps every other login failure.
	ErrLoginFailed = errors.New("login failed")
)

// StepError is a modeled step failure with a human readable reason
type StepError struct {
	Step   Step
	Reason string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Reason)
}

// Fail builds a step failure carrying reason; the engine fills in the step.
func Fail(reason string) error {
	return &StepError{Reason: reason}
}

// TimeoutError is returned when a step exceeds the configured step timeout
type TimeoutError struct {
	Step  Step
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Step, e.After)
}

// faultError wraps a panic recovered from a decider
type faultError struct {
	step  Step
	value interface{}
}

func (e *faultError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.step, e.value)
}

// classify turns a step error into the reason attached to the outcome.
// Modeled failures get the step's reason; anything else keeps its own text.
func classify(step Step, err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Reason != "" {
		return stepErr.Reason
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return "Tempo esgotado: " + step.String()
	}
	if errors.Is(err, ErrStepFailed) || errors.Is(err, ErrSessionExpired) || stepErr != nil {
		if reason, ok := defaultReasons[step]; ok {
			return reason
		}
	}
	return err.Error()
}

// Credentials for the wagering platform
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) complete() bool {
	return c.Username != "" && c.Password != ""
}

// StepDecider decides whether a step succeeds. A nil error is success.
// For StepAuthenticating, StepLoggingOut and connection tests req is the zero value.
type StepDecider interface {
	Decide(ctx context.Context, step Step, req models.BetRequest, creds Credentials) error
}

// DeciderFunc adapts a function to StepDecider
type DeciderFunc func(ctx context.Context, step Step, req models.BetRequest, creds Credentials) error

func (f DeciderFunc) Decide(ctx context.Context, step Step, req models.BetRequest, creds Credentials) error {
	return f(ctx, step, req, creds)
}

// AlwaysSucceed is the reference behavior: every step succeeds
var AlwaysSucceed StepDecider = DeciderFunc(func(context.Context, Step, models.BetRequest, Credentials) error {
	return nil
})

// RandomDecider fails bet steps at random. It stands in for a real platform
// integration during demos; login and logout always succeed.
type RandomDecider struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	successRate float64
}

// NewRandomDecider makes each bet step succeed with probability successRate.
func NewRandomDecider(successRate float64, seed int64) *RandomDecider {
	return &RandomDecider{
		rnd:         rand.New(rand.NewSource(seed)),
		successRate: successRate,
	}
}

func (d *RandomDecider) Decide(ctx context.Context, step Step, req models.BetRequest, creds Credentials) error {
	if step == StepAuthenticating || step == StepLoggingOut {
		return nil
	}
	d.mu.Lock()
	roll := d.rnd.Float64()
	d.mu.Unlock()
	if roll < d.successRate {
		return nil
	}
	return ErrStepFailed
}
