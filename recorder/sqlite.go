package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/evdnx/gosignal/logger"
	"github.com/evdnx/gosignal/signal"
)

// SQLiteRecorder writes rule events and decisions to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log logger.Logger
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string, log logger.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = logger.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("recorder_opened", logger.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rule_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			cycle       TEXT NOT NULL,
			strategy    TEXT,
			event_type  TEXT,
			symbol      TEXT,
			rule        TEXT,
			predicate   TEXT,
			fired       INTEGER,
			skipped     INTEGER,
			substituted INTEGER,
			action      TEXT,
			value       REAL,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rule_events_cycle ON rule_events(cycle)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			cycle     TEXT NOT NULL,
			strategy  TEXT,
			symbol    TEXT,
			proposed  REAL,
			applied   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_strategy_ts ON decisions(strategy, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Record implements signal.EventSink.
func (r *SQLiteRecorder) Record(e signal.Event) {
	if err := r.RecordEvent(e); err != nil {
		r.log.Error("record_event_failed", logger.String("cycle", e.Cycle), logger.Err(err))
	}
}

func (r *SQLiteRecorder) RecordEvent(e signal.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	errText := ""
	if e.Err != nil {
		errText = e.Err.Error()
	}
	_, err := r.db.Exec(`INSERT INTO rule_events
		(timestamp, cycle, strategy, event_type, symbol, rule, predicate,
		 fired, skipped, substituted, action, value, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		at.UnixNano(), e.Cycle, e.Strategy, string(e.Type), e.Symbol, e.Rule, string(e.Kind),
		e.Fired, e.Skipped, e.Substituted, string(e.Action), e.Value, errText,
	)
	return err
}

// RecordDecision stores one row per proposed symbol in a single
// transaction.
func (r *SQLiteRecorder) RecordDecision(d *DecisionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := d.At
	if at.IsZero() {
		at = time.Now()
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	for _, sym := range d.Proposed.Symbols() {
		if _, err := tx.Exec(`INSERT INTO decisions
			(timestamp, cycle, strategy, symbol, proposed, applied)
			VALUES (?,?,?,?,?,?)`,
			at.UnixNano(), d.Cycle, d.Strategy, sym, d.Proposed[sym], d.Applied,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Decisions returns the newest rows for strategy, newest first.
func (r *SQLiteRecorder) Decisions(strategy string, limit int) ([]DecisionRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT timestamp, cycle, strategy, symbol, proposed, applied
		FROM decisions WHERE strategy = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var (
			row DecisionRow
			ts  int64
		)
		if err := rows.Scan(&ts, &row.Cycle, &row.Strategy, &row.Symbol, &row.Proposed, &row.Applied); err != nil {
			return nil, err
		}
		row.At = time.Unix(0, ts)
		out = append(out, row)
	}
	return out, rows.Err()
}

// CountEvents returns the number of stored events for a cycle, by type.
func (r *SQLiteRecorder) CountEvents(cycle string) (map[signal.EventType]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT event_type, COUNT(*) FROM rule_events WHERE cycle = ? GROUP BY event_type`, cycle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[signal.EventType]int{}
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[signal.EventType(t)] = n
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("recorder_closed")
	return r.db.Close()
}
