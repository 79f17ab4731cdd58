package calllog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Outcome values recorded at call termination.
const (
	OutcomeCompleted  = "completed"
	OutcomeEscalated  = "escalated"
	OutcomeAbandoned  = "abandoned"
	OutcomeClosed     = "closed"
	OutcomeInProgress = "in_progress"
)

// Record is one finished call.
type Record struct {
	CallID        string            `db:"call_id" json:"callId"`
	From          string            `db:"caller" json:"from"`
	To            string            `db:"callee" json:"to"`
	StartTime     time.Time         `db:"start_time" json:"startTime"`
	EndTime       time.Time         `db:"end_time" json:"endTime"`
	Duration      int64             `db:"duration" json:"duration"`
	MenuSelection string            `db:"menu_selection" json:"menuSelection"`
	Intent        string            `db:"intent" json:"intent"`
	Outcome       string            `db:"outcome" json:"outcome"`
	Transcript    []TranscriptLine  `db:"-" json:"transcript,omitempty"`
	Context       map[string]string `db:"-" json:"context,omitempty"`
}

// TranscriptLine mirrors the session transcript for storage.
type TranscriptLine struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Stats aggregates the log for the ops endpoint.
type Stats struct {
	TotalCalls     int            `json:"totalCalls"`
	AvgDurationSec float64        `json:"avgDurationSec"`
	ByIntent       map[string]int `json:"byIntent"`
	ByOutcome      map[string]int `json:"byOutcome"`
}

// ListOptions filters ListCalls.
type ListOptions struct {
	Intent  string
	Outcome string
	Limit   int
	Offset  int
}

// Store is the sqlite-backed call log.
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the call log database at dsn.
func New(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// DB returns the underlying sqlx.DB.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS call_logs (
id INTEGER PRIMARY KEY AUTOINCREMENT,
call_id TEXT UNIQUE NOT NULL,
caller TEXT NOT NULL,
callee TEXT,
start_time TIMESTAMP NOT NULL,
end_time TIMESTAMP NOT NULL,
duration INTEGER NOT NULL DEFAULT 0,
menu_selection TEXT,
intent TEXT,
outcome TEXT NOT NULL DEFAULT 'in_progress',
transcript TEXT,
context TEXT,
created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_caller ON call_logs(caller)`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_intent ON call_logs(intent)`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_outcome ON call_logs(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_start ON call_logs(start_time)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// LogCall writes the record for a terminated call. The call_id column is
// unique, so a second write for the same call fails rather than
// duplicating the row.
func (s *Store) LogCall(ctx context.Context, rec *Record) error {
	if rec == nil || rec.CallID == "" {
		return fmt.Errorf("call record requires a call id")
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeInProgress
	}

	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	callCtx, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO call_logs (call_id, caller, callee, start_time, end_time, duration, menu_selection, intent, outcome, transcript, context, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CallID, rec.From, rec.To, rec.StartTime, rec.EndTime, rec.Duration,
		rec.MenuSelection, rec.Intent, rec.Outcome, string(transcript), string(callCtx),
		time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert call log: %w", err)
	}

	return nil
}

// GetCall returns the record for one call.
func (s *Store) GetCall(ctx context.Context, callID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT call_id, caller, callee, start_time, end_time, duration, menu_selection, intent, outcome, transcript, context
		 FROM call_logs WHERE call_id = ?`, callID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("call %s not found", callID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return rec, nil
}

// ListCalls returns recent calls newest first, filtered by intent and
// outcome when set.
func (s *Store) ListCalls(ctx context.Context, opts ListOptions) ([]*Record, error) {
	query := `SELECT call_id, caller, callee, start_time, end_time, duration, menu_selection, intent, outcome, transcript, context
		 FROM call_logs`
	var (
		conds []string
		args  []any
	)
	if opts.Intent != "" {
		conds = append(conds, "intent = ?")
		args = append(args, opts.Intent)
	}
	if opts.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, opts.Outcome)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	limit := opts.Limit
	if limit == 0 {
		limit = 50
	}
	query += " ORDER BY start_time DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetStats aggregates calls from the last `days` days.
func (s *Store) GetStats(ctx context.Context, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	stats := &Stats{
		ByIntent:  map[string]int{},
		ByOutcome: map[string]int{},
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration), 0) FROM call_logs WHERE start_time >= ?`,
		since).Scan(&stats.TotalCalls, &stats.AvgDurationSec)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate call logs: %w", err)
	}

	groups := []struct {
		column string
		dest   map[string]int
	}{
		{"intent", stats.ByIntent},
		{"outcome", stats.ByOutcome},
	}
	for _, g := range groups {
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT COALESCE(%s, ''), COUNT(*) FROM call_logs WHERE start_time >= ? GROUP BY %s`, g.column, g.column),
			since)
		if err != nil {
			return nil, fmt.Errorf("failed to group call logs by %s: %w", g.column, err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s group: %w", g.column, err)
			}
			if key != "" {
				g.dest[key] = count
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return stats, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var transcript, callCtx sql.NullString

	err := row.Scan(&rec.CallID, &rec.From, &rec.To, &rec.StartTime, &rec.EndTime,
		&rec.Duration, &rec.MenuSelection, &rec.Intent, &rec.Outcome,
		&transcript, &callCtx)
	if err != nil {
		return nil, err
	}

	if transcript.Valid && transcript.String != "" {
		if err := json.Unmarshal([]byte(transcript.String), &rec.Transcript); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
		}
	}
	if callCtx.Valid && callCtx.String != "" {
		if err := json.Unmarshal([]byte(callCtx.String), &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context: %w", err)
		}
	}

	return &rec, nil
}
