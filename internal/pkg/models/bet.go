package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the persisted layout of HistoryEntry.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the date component of TimestampLayout.
const DateLayout = "2006-01-02"

// Status strings as stored in the history file
const (
	StatusSuccess     = "Sucesso"
	StatusErrorPrefix = "Erro"
)

// BetRequest is a parsed bet instruction awaiting execution
type BetRequest struct {
	RaceName   string `json:"race_name"`
	RaceNumber string `json:"race_number"`
	Horse      string `json:"horse"`
	Odds       string `json:"odds"`
	BetType    string `json:"bet_type"`
}

// ParsedOdds returns the odds as a decimal. ok is false when the odds text
// is not a non-negative number.
func (r BetRequest) ParsedOdds() (decimal.Decimal, bool) {
	return ParseOdds(r.Odds)
}

// ParseOdds parses an odds value accepting either comma or dot as decimal separator.
func ParseOdds(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// OutcomeStatus is the terminal state of one executed request
type OutcomeStatus int

const (
	OutcomeSuccess OutcomeStatus = iota
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	if s == OutcomeSuccess {
		return "success"
	}
	return "failed"
}

// BetOutcome is the immutable result of processing one BetRequest
type BetOutcome struct {
	Request       BetRequest
	Status        OutcomeStatus
	FailureReason string
	Timestamp     time.Time
}

// Succeeded reports whether the bet was placed.
func (o BetOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// StatusText returns the human readable status stored in history,
// "Sucesso" or "Erro - <reason>".
func (o BetOutcome) StatusText() string {
	if o.Succeeded() {
		return StatusSuccess
	}
	if o.FailureReason == "" {
		return StatusErrorPrefix
	}
	return StatusErrorPrefix + " - " + o.FailureReason
}

// HistoryEntry converts the outcome into its persisted form.
func (o BetOutcome) HistoryEntry() HistoryEntry {
	return HistoryEntry{
		Timestamp:  o.Timestamp.Format(TimestampLayout),
		RaceName:   o.Request.RaceName,
		RaceNumber: o.Request.RaceNumber,
		Horse:      o.Request.Horse,
		Odds:       o.Request.Odds,
		BetType:    o.Request.BetType,
		Status:     o.StatusText(),
	}
}

// HistoryEntry is one persisted record of an executed request
type HistoryEntry struct {
	Timestamp  string `json:"timestamp"`
	RaceName   string `json:"race_name"`
	RaceNumber string `json:"race_number"`
	Horse      string `json:"horse"`
	Odds       string `json:"odds"`
	BetType    string `json:"bet_type"`
	Status     string `json:"status"`
}

// Date returns the date component of the timestamp (YYYY-MM-DD).
func (e HistoryEntry) Date() string {
	if i := strings.IndexByte(e.Timestamp, ' '); i >= 0 {
		return e.Timestamp[:i]
	}
	return e.Timestamp
}

// Time parses the timestamp in the given location.
func (e HistoryEntry) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, e.Timestamp, loc)
}

// IsSuccess reports whether the status marks a placed bet.
func (e HistoryEntry) IsSuccess() bool {
	return strings.Contains(e.Status, StatusSuccess)
}

// IsError reports whether the status marks a failed bet.
func (e HistoryEntry) IsError() bool {
	return strings.Contains(e.Status, StatusErrorPrefix)
}
