// Package stats aggregates bet history into reporting snapshots.
package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// MaxDisplayDays is how many trailing days DailyCounts keeps
const MaxDisplayDays = 7

// DayCount is the number of bets on one calendar day
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Snapshot is derived on demand and never persisted
type Snapshot struct {
	Total            int        `json:"total"`
	SuccessCount     int        `json:"success"`
	ErrorCount       int        `json:"error"`
	SuccessRate      float64    `json:"success_rate"`
	AverageOdds      float64    `json:"avg_odds"`
	UniqueRaceCount  int        `json:"unique_races"`
	UniqueHorseCount int        `json:"unique_horses"`
	DailyCounts      []DayCount `json:"daily_counts"`

	// Elapsed-time buckets relative to now
	Today      int `json:"today"`
	Last7Days  int `json:"last_7_days"`
	Last30Days int `json:"last_30_days"`
}

// Compute builds a snapshot of entries as of now.
//
// When windowDays > 0 only entries whose date is on or after now-windowDays
// (compared as YYYY-MM-DD strings) are counted. windowDays <= 0 means no window.
func Compute(entries []models.HistoryEntry, windowDays int, now time.Time) Snapshot {
	if windowDays > 0 {
		entries = FilterWindow(entries, windowDays, now)
	}

	snap := Snapshot{DailyCounts: []DayCount{}}
	races := make(map[string]struct{})
	horses := make(map[string]struct{})
	daily := make(map[string]int)
	today := now.Format(models.DateLayout)

	oddsSum := decimal.Zero
	oddsCount := 0

	for _, e := range entries {
		snap.Total++
		switch {
		case e.IsSuccess():
			snap.SuccessCount++
		case e.IsError():
			snap.ErrorCount++
		}

		if odds, ok := models.ParseOdds(e.Odds); ok {
			oddsSum = oddsSum.Add(odds)
			oddsCount++
		}

		day := e.Date()
		daily[day]++
		races[e.RaceName] = struct{}{}
		horses[e.Horse] = struct{}{}

		if day == today {
			snap.Today++
		}
		if ts, err := e.Time(now.Location()); err == nil {
			days := int(now.Sub(ts) / (24 * time.Hour))
			if days < 7 {
				snap.Last7Days++
			}
			if days < 30 {
				snap.Last30Days++
			}
		}
	}

	snap.UniqueRaceCount = len(races)
	snap.UniqueHorseCount = len(horses)

	if snap.Total > 0 {
		rate := decimal.NewFromInt(int64(snap.SuccessCount)).
			Div(decimal.NewFromInt(int64(snap.Total))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		snap.SuccessRate = rate.InexactFloat64()
	}
	if oddsCount > 0 {
		snap.AverageOdds = oddsSum.Div(decimal.NewFromInt(int64(oddsCount))).Round(2).InexactFloat64()
	}

	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Strings(days)
	if len(days) > MaxDisplayDays {
		days = days[len(days)-MaxDisplayDays:]
	}
	for _, d := range days {
		snap.DailyCounts = append(snap.DailyCounts, DayCount{Day: d, Count: daily[d]})
	}

	return snap
}

// FilterWindow keeps entries dated on or after now-windowDays.
func FilterWindow(entries []models.HistoryEntry, windowDays int, now time.Time) []models.HistoryEntry {
	cutoff := now.AddDate(0, 0, -windowDays).Format(models.DateLayout)
	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Date() >= cutoff {
			out = append(out, e)
		}
	}
	return out
}
