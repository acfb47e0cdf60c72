// Package betmsg turns chat messages into bet requests.
package betmsg

import (
	"errors"
	"strings"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// Field labels as they appear in the tipster messages
const (
	LabelRaceName   = "Nome da Corrida:"
	LabelRaceNumber = "Número da Corrida:"
	LabelHorse      = "Cavalo:"
	LabelOdds       = "Odds:"
	LabelBetType    = "Tipo:"
)

var (
	// ErrNotABet is returned for messages without the race name and horse markers.
	ErrNotABet = errors.New("message is not a bet")
	// ErrIncompleteBet is matched by *IncompleteError.
	ErrIncompleteBet = errors.New("incomplete bet message")
)

// IncompleteError lists the labels a bet-shaped message is missing
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "incomplete bet message: missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteBet
}

// IsBet reports whether text carries both the race name and horse markers.
func IsBet(text string) bool {
	return strings.Contains(text, LabelRaceName) && strings.Contains(text, LabelHorse)
}

// Parse extracts a BetRequest from a tipster message.
//
// Each field is the remainder of the line after the first occurrence of its label,
// trimmed. Odds additionally lose a leading "@". Parse has no side effects.
func Parse(text string) (models.BetRequest, error) {
	if !IsBet(text) {
		return models.BetRequest{}, ErrNotABet
	}

	var req models.BetRequest
	var missing []string

	fields := []struct {
		label string
		dst   *string
	}{
		{LabelRaceName, &req.RaceName},
		{LabelRaceNumber, &req.RaceNumber},
		{LabelHorse, &req.Horse},
		{LabelOdds, &req.Odds},
		{LabelBetType, &req.BetType},
	}
	for _, f := range fields {
		v, ok := extract(text, f.label)
		if f.label == LabelOdds {
			v = strings.TrimSpace(strings.ReplaceAll(v, "@", ""))
		}
		if !ok || v == "" {
			missing = append(missing, strings.TrimSuffix(f.label, ":"))
			continue
		}
		*f.dst = v
	}

	if len(missing) > 0 {
		return models.BetRequest{}, &IncompleteError{Missing: missing}
	}
	return req, nil
}

func extract(text, label string) (string, bool) {
	i := strings.Index(text, label)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(label):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}
