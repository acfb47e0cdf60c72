package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// HistoryStorage is the append-only log of executed bets
type HistoryStorage interface {
	// Append adds one entry; it returns only after the entry is durable
	Append(ctx context.Context, entry models.HistoryEntry) error

	// Query returns entries matching the filter, most recent first
	Query(ctx context.Context, filter Filter) ([]models.HistoryEntry, error)

	// All returns every entry in insertion order
	All(ctx context.Context) ([]models.HistoryEntry, error)

	// Clear removes all entries
	Clear(ctx context.Context) error

	// Close releases the underlying resources
	Close() error
}

// Filter narrows a history query. Empty fields match everything.
// Race, Horse and Status are case-insensitive substrings, combined with AND.
type Filter struct {
	Race   string
	Horse  string
	Status string
	Limit  int // <= 0 means no limit
}

// Match reports whether the entry passes all non-empty filters.
func (f Filter) Match(e models.HistoryEntry) bool {
	return containsFold(e.RaceName, f.Race) &&
		containsFold(e.Horse, f.Horse) &&
		containsFold(e.Status, f.Status)
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ApplyFilter filters entries (given in insertion order), sorts them by timestamp
// descending and applies the limit. Entries with equal timestamps keep their relative order.
// The input slice is not modified.
func ApplyFilter(entries []models.HistoryEntry, f Filter) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// PersistenceError is returned when a mutation could not be made durable.
// The in-memory state is left as it was before the call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
