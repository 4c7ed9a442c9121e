package journal

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists events to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so audit queries can run while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("INFO: sqlite journal opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id        TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			caller    TEXT,
			asset     TEXT,
			amount    TEXT,
			bid_index INTEGER,
			note      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_caller ON events(caller)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:30], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Record(evt *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO events
		(id, timestamp, kind, caller, asset, amount, bid_index, note)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.ID, evt.Time.Unix(), evt.Kind, evt.Caller,
		evt.Asset, evt.Amount.String(), evt.BidIndex, evt.Note,
	)
	return err
}

// CountByKind reports how many events of a kind have been journalled.
func (r *SQLiteRecorder) CountByKind(kind string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE kind = ?`, kind).Scan(&n)
	return n, err
}

// EventsByCaller loads a caller's events, oldest first.
func (r *SQLiteRecorder) EventsByCaller(caller string) ([]*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, kind, caller, asset, amount, bid_index, note
		FROM events WHERE caller = ? ORDER BY timestamp, id`, caller)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var (
			evt    Event
			ts     int64
			amount string
		)
		if err := rows.Scan(&evt.ID, &ts, &evt.Kind, &evt.Caller, &evt.Asset, &amount, &evt.BidIndex, &evt.Note); err != nil {
			return nil, err
		}
		evt.Time = time.Unix(ts, 0).UTC()
		evt.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", amount, err)
		}
		out = append(out, &evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("INFO: closing sqlite journal")
	return r.db.Close()
}
