// history-stats prints bet history statistics and recent entries.
//
//	go run ./cmd/tools/history-stats -history bet_history.json -days 7
//	go run ./cmd/tools/history-stats -config configs/betrunner.yaml -race ascot -limit 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Vodeneev/betrunner/internal/pkg/config"
	"github.com/Vodeneev/betrunner/internal/pkg/stats"
	"github.com/Vodeneev/betrunner/internal/pkg/storage"
)

func main() {
	var (
		configPath  string
		historyPath string
		days        int
		filter      storage.Filter
		asJSON      bool
		clear       bool
	)
	flag.StringVar(&configPath, "config", "", "Config file; when set the history backend comes from it")
	flag.StringVar(&historyPath, "history", "bet_history.json", "History file (ignored with -config)")
	flag.IntVar(&days, "days", 0, "Only count bets from the last N days (0 = all)")
	flag.StringVar(&filter.Race, "race", "", "Race name filter (substring, case-insensitive)")
	flag.StringVar(&filter.Horse, "horse", "", "Horse filter (substring, case-insensitive)")
	flag.StringVar(&filter.Status, "status", "", "Status filter, e.g. Sucesso or Erro")
	flag.IntVar(&filter.Limit, "limit", 10, "Number of entries to list (0 = all)")
	flag.BoolVar(&asJSON, "json", false, "Print the statistics snapshot as JSON")
	flag.BoolVar(&clear, "clear", false, "Delete all history entries")
	flag.Parse()

	store, err := open(configPath, historyPath)
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if clear {
		if err := store.Clear(ctx); err != nil {
			log.Fatalf("Failed to clear history: %v", err)
		}
		fmt.Println("History cleared")
		return
	}

	all, err := store.All(ctx)
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	now := time.Now()
	snap := stats.Compute(all, days, now)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			log.Fatalf("Failed to encode snapshot: %v", err)
		}
		return
	}

	printSnapshot(snap, days)

	entries := storage.ApplyFilter(stats.FilterWindow(all, days, now), filter)
	fmt.Printf("\nEntries (%d):\n", len(entries))
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tRACE\tNO\tHORSE\tODDS\tTYPE\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.RaceName, e.RaceNumber, e.Horse, e.Odds, e.BetType, e.Status)
	}
	tw.Flush()
}

func open(configPath, historyPath string) (storage.HistoryStorage, error) {
	if configPath == "" {
		return storage.LoadOrInit(historyPath), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.History.Backend == "postgres" {
		return storage.NewPostgresHistoryStorage(&cfg.Postgres)
	}
	return storage.LoadOrInit(cfg.History.Path), nil
}

func printSnapshot(s stats.Snapshot, days int) {
	window := "all time"
	if days > 0 {
		window = fmt.Sprintf("last %d days", days)
	}
	fmt.Printf("Statistics (%s)\n", window)
	fmt.Printf("  Total:         %d\n", s.Total)
	fmt.Printf("  Success:       %d\n", s.SuccessCount)
	fmt.Printf("  Errors:        %d\n", s.ErrorCount)
	fmt.Printf("  Success rate:  %.2f%%\n", s.SuccessRate)
	fmt.Printf("  Average odds:  %.2f\n", s.AverageOdds)
	fmt.Printf("  Races:         %d\n", s.UniqueRaceCount)
	fmt.Printf("  Horses:        %d\n", s.UniqueHorseCount)
	fmt.Printf("  Today / 7d / 30d: %d / %d / %d\n", s.Today, s.Last7Days, s.Last30Days)
	if len(s.DailyCounts) > 0 {
		fmt.Println("  Per day:")
		for _, d := range s.DailyCounts {
			fmt.Printf("    %s  %d\n", d.Day, d.Count)
		}
	}
}
