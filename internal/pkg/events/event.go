// Package events streams engine progress and bet outcomes to external consumers.
package events

import (
	"time"

	"github.com/Vodeneev/betrunner/internal/engine"
	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

const (
	TypeProgress = "progress"
	TypeError    = "error"
	TypeOutcome  = "outcome"
)

// Envelope is the message written to websocket clients
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// StepEvent is an engine progress or error line
type StepEvent struct {
	Step    string    `json:"step"`
	Message string    `json:"message"`
	Race    string    `json:"race,omitempty"`
	Horse   string    `json:"horse,omitempty"`
	Time    time.Time `json:"time"`
}

// OutcomeEvent describes a processed bet
type OutcomeEvent struct {
	CorrelationID string `json:"correlation_id"`
	Timestamp     string `json:"timestamp"`
	RaceName      string `json:"race_name"`
	RaceNumber    string `json:"race_number"`
	Horse         string `json:"horse"`
	Odds          string `json:"odds"`
	BetType       string `json:"bet_type"`
	Status        string `json:"status"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func newStepEvent(ev engine.Event) StepEvent {
	return StepEvent{
		Step:    ev.Step.String(),
		Message: ev.Message,
		Race:    ev.Race,
		Horse:   ev.Horse,
		Time:    ev.Time,
	}
}

func newOutcomeEvent(correlationID string, o models.BetOutcome) OutcomeEvent {
	entry := o.HistoryEntry()
	return OutcomeEvent{
		CorrelationID: correlationID,
		Timestamp:     entry.Timestamp,
		RaceName:      entry.RaceName,
		RaceNumber:    entry.RaceNumber,
		Horse:         entry.Horse,
		Odds:          entry.Odds,
		BetType:       entry.BetType,
		Status:        entry.Status,
		Success:       o.Succeeded(),
		FailureReason: o.FailureReason,
	}
}
