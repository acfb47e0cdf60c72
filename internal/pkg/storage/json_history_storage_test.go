package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

func entry(ts, race, horse, status string) models.HistoryEntry {
	return models.HistoryEntry{
		Timestamp:  ts,
		RaceName:   race,
		RaceNumber: "1",
		Horse:      horse,
		Odds:       "2.50",
		BetType:    "Win",
		Status:     status,
	}
}

func TestJSONHistoryStorage_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	s := LoadOrInit(filepath.Join(t.TempDir(), "bet_history.json"))

	if err := s.Append(ctx, entry("2026-05-01 10:00:00", "Chelmsford City", "Red Rum", "Sucesso")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, entry("2026-05-01 11:00:00", "Ascot", "Frankel", "Erro - Falha no login")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Query(ctx, Filter{Status: "Erro"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].RaceName != "Ascot" {
		t.Fatalf("Query(status=Erro) = %+v, want single Ascot entry", got)
	}

	all, _ := s.Query(ctx, Filter{})
	if len(all) != 2 || all[0].RaceName != "Ascot" || all[1].RaceName != "Chelmsford City" {
		t.Errorf("Query() not most-recent-first: %+v", all)
	}
}

func TestJSONHistoryStorage_QueryFilters(t *testing.T) {
	ctx := context.Background()
	s := LoadOrInit(filepath.Join(t.TempDir(), "h.json"))
	seed := []models.HistoryEntry{
		entry("2026-05-01 09:00:00", "Ascot", "Frankel", "Sucesso"),
		entry("2026-05-02 09:00:00", "Ascot", "Sea Bird", "Erro - Cavalo não encontrado"),
		entry("2026-05-03 09:00:00", "York", "Frankel", "Sucesso"),
		entry("2026-05-04 09:00:00", "Royal Ascot", "Frankel", "Sucesso"),
	}
	for _, e := range seed {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string // timestamps
	}{
		{"race case-insensitive substring", Filter{Race: "ascot"}, []string{"2026-05-04 09:00:00", "2026-05-02 09:00:00", "2026-05-01 09:00:00"}},
		{"race and horse", Filter{Race: "ASCOT", Horse: "frank"}, []string{"2026-05-04 09:00:00", "2026-05-01 09:00:00"}},
		{"status", Filter{Status: "sucesso"}, []string{"2026-05-04 09:00:00", "2026-05-03 09:00:00", "2026-05-01 09:00:00"}},
		{"limit from head", Filter{Limit: 2}, []string{"2026-05-04 09:00:00", "2026-05-03 09:00:00"}},
		{"no match", Filter{Horse: "Shergar"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Query(%+v) returned %d entries, want %d", tt.filter, len(got), len(tt.want))
			}
			for i, ts := range tt.want {
				if got[i].Timestamp != ts {
					t.Errorf("entry %d timestamp = %s, want %s", i, got[i].Timestamp, ts)
				}
			}
		})
	}
}

func TestJSONHistoryStorage_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bet_history.json")
	written := []models.HistoryEntry{
		entry("2026-05-01 10:00:00", "Chelmsford City", "Red Rum", "Sucesso"),
		entry("2026-05-01 10:00:00", "Ascot", "Frankel", "Erro - Falha no login"),
	}

	s := LoadOrInit(path)
	for _, e := range written {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	reloaded := LoadOrInit(path)
	got, _ := reloaded.All(ctx)
	if len(got) != len(written) {
		t.Fatalf("reloaded %d entries, want %d", len(got), len(written))
	}
	for i := range written {
		if got[i] != written[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], written[i])
		}
	}
}

func TestLoadOrInit_MissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()

	missing := LoadOrInit(filepath.Join(dir, "missing.json"))
	if all, _ := missing.All(context.Background()); len(all) != 0 {
		t.Errorf("missing file should give empty store, got %d entries", len(all))
	}

	corruptPath := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corruptPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	corrupt := LoadOrInit(corruptPath)
	if all, _ := corrupt.All(context.Background()); len(all) != 0 {
		t.Errorf("corrupt file should give empty store, got %d entries", len(all))
	}
	if err := corrupt.Append(context.Background(), entry("2026-05-01 10:00:00", "Ascot", "Frankel", "Sucesso")); err != nil {
		t.Errorf("Append after corrupt load: %v", err)
	}
}

func TestJSONHistoryStorage_RollbackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	s := LoadOrInit(filepath.Join(t.TempDir(), "h.json"))
	first := entry("2026-05-01 10:00:00", "Ascot", "Frankel", "Sucesso")
	if err := s.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}

	diskErr := errors.New("disk full")
	s.writeFile = func(string, []byte) error { return diskErr }

	err := s.Append(ctx, entry("2026-05-01 11:00:00", "York", "Sea Bird", "Sucesso"))
	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, diskErr) {
		t.Fatalf("Append error = %v, want PersistenceError wrapping disk error", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, diskErr) {
		t.Fatalf("Clear error = %v, want disk error", err)
	}

	all, _ := s.All(ctx)
	if len(all) != 1 || all[0] != first {
		t.Errorf("store not rolled back: %+v", all)
	}

	s.writeFile = atomicWriteFile
	if err := s.Append(ctx, entry("2026-05-01 11:00:00", "York", "Sea Bird", "Sucesso")); err != nil {
		t.Fatalf("retry Append: %v", err)
	}
	if all, _ := s.All(ctx); len(all) != 2 {
		t.Errorf("after retry got %d entries, want 2", len(all))
	}
}

func TestJSONHistoryStorage_Clear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "h.json")
	s := LoadOrInit(path)
	_ = s.Append(ctx, entry("2026-05-01 10:00:00", "Ascot", "Frankel", "Sucesso"))

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if all, _ := LoadOrInit(path).All(ctx); len(all) != 0 {
		t.Errorf("cleared store reloaded with %d entries", len(all))
	}
}

func TestJSONHistoryStorage_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "h.json")
	s := LoadOrInit(path)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(ctx, entry(fmt.Sprintf("2026-05-01 10:00:%02d", i), "Ascot", "Frankel", "Sucesso")); err != nil {
				t.Errorf("Append: %v", err)
			}
			_, _ = s.Query(ctx, Filter{Race: "ascot"})
		}(i)
	}
	wg.Wait()

	if all, _ := LoadOrInit(path).All(ctx); len(all) != n {
		t.Errorf("persisted %d entries, want %d", len(all), n)
	}
}
