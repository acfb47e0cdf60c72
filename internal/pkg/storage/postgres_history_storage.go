package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Vodeneev/betrunner/internal/pkg/config"
	"github.com/Vodeneev/betrunner/internal/pkg/models"
)

// Ensure PostgresHistoryStorage implements HistoryStorage
var _ HistoryStorage = (*PostgresHistoryStorage)(nil)

// PostgresHistoryStorage stores history entries as an append-only table.
// Every Append is a single INSERT, so there is no whole-store rewrite.
type PostgresHistoryStorage struct {
	db *sql.DB
}

// NewPostgresHistoryStorage opens the connection and creates the schema if needed
func NewPostgresHistoryStorage(cfg *config.PostgresConfig) (*PostgresHistoryStorage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresHistoryStorage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL history storage initialized")
	return s, nil
}

func (s *PostgresHistoryStorage) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS bet_history (
		id BIGSERIAL PRIMARY KEY,
		ts VARCHAR(19) NOT NULL,
		race_name TEXT NOT NULL,
		race_number TEXT NOT NULL,
		horse TEXT NOT NULL,
		odds TEXT NOT NULL,
		bet_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_bet_history_ts ON bet_history(ts DESC);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresHistoryStorage) Append(ctx context.Context, entry models.HistoryEntry) error {
	query := `
	INSERT INTO bet_history (ts, race_name, race_number, horse, odds, bet_type, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.Timestamp,
		entry.RaceName,
		entry.RaceNumber,
		entry.Horse,
		entry.Odds,
		entry.BetType,
		entry.Status,
	)
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	return nil
}

func (s *PostgresHistoryStorage) Query(ctx context.Context, filter Filter) ([]models.HistoryEntry, error) {
	query, args := buildHistoryQuery(filter)
	return s.fetch(ctx, query, args...)
}

func (s *PostgresHistoryStorage) All(ctx context.Context) ([]models.HistoryEntry, error) {
	return s.fetch(ctx, `SELECT ts, race_name, race_number, horse, odds, bet_type, status FROM bet_history ORDER BY id ASC`)
}

func (s *PostgresHistoryStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE bet_history`); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	slog.Info("History cleared", "backend", "postgres")
	return nil
}

func (s *PostgresHistoryStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresHistoryStorage) fetch(ctx context.Context, query string, args ...interface{}) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.Timestamp, &e.RaceName, &e.RaceNumber, &e.Horse, &e.Odds, &e.BetType, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// buildHistoryQuery mirrors ApplyFilter in SQL: substring filters are
// case-insensitive, ties on ts keep insertion order.
func buildHistoryQuery(filter Filter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT ts, race_name, race_number, horse, odds, bet_type, status FROM bet_history`)

	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("strpos(lower(%s), lower($%d)) > 0", column, len(args)))
	}
	add("race_name", filter.Race)
	add("horse", filter.Horse)
	add("status", filter.Status)

	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY ts DESC, id ASC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(filter.Limit))
	}
	return b.String(), args
}

// Ping checks the database connection.
func (s *PostgresHistoryStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
