package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
	"github.com/Vodeneev/betrunner/internal/pkg/stats"
	"github.com/Vodeneev/betrunner/internal/pkg/storage"
)

// History serves the bet history and its statistics
type History struct {
	Store storage.HistoryStorage
	Now   func() time.Time
}

// HandleHistory handles /history?race=&horse=&status=&limit=
func (h *History) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.Filter{
		Race:   q.Get("race"),
		Horse:  q.Get("horse"),
		Status: q.Get("status"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.Store.Query(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to query history", "error", err)
		http.Error(w, fmt.Sprintf("failed to query history: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSON(w, entries)
}

// HandleStats handles /stats?days=N; no days (or 0) means all history
func (h *History) HandleStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	entries, err := h.Store.All(r.Context())
	if err != nil {
		slog.Error("Failed to read history", "error", err)
		http.Error(w, fmt.Sprintf("failed to read history: %v", err), http.StatusInternalServerError)
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	writeJSON(w, stats.Compute(entries, days, now()))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
