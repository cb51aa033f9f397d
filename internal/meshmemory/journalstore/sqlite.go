package journalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory"
)

// SQLiteConfig configures a SQLite-backed journal.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:" for an ephemeral store.
	Path  string
	Table string
}

// DefaultSQLiteConfig returns an in-memory configuration suitable for tests.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{Path: ":memory:", Table: "memory_journal"}
}

// SQLiteJournal is a meshmemory.Journal backed by a pure-Go, cgo-free SQLite
// driver. It satisfies the same Journal contract as PostgresJournal and
// FileJournal.
type SQLiteJournal struct {
	db    *sql.DB
	table string

	stmtAppend *sql.Stmt
	stmtTail   *sql.Stmt
	stmtClear  *sql.Stmt
}

// OpenSQLiteJournal opens (creating if necessary) a SQLite-backed journal.
func OpenSQLiteJournal(ctx context.Context, config SQLiteConfig) (*SQLiteJournal, error) {
	if config.Path == "" {
		config.Path = DefaultSQLiteConfig().Path
	}
	if config.Table == "" {
		config.Table = DefaultSQLiteConfig().Table
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("journalstore: open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journalstore: ping sqlite database: %w", err)
	}

	journal := &SQLiteJournal{db: db, table: config.Table}
	if err := journal.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := journal.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return journal, nil
}

func (j *SQLiteJournal) ensureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			record TEXT NOT NULL
		)
	`, j.table))
	if err != nil {
		return fmt.Errorf("journalstore: create sqlite journal table: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) prepareStatements() error {
	var err error
	j.stmtAppend, err = j.db.Prepare(fmt.Sprintf("INSERT INTO %s (record) VALUES (?)", j.table))
	if err != nil {
		return fmt.Errorf("journalstore: prepare append: %w", err)
	}
	j.stmtTail, err = j.db.Prepare(fmt.Sprintf("SELECT record FROM %s ORDER BY seq DESC LIMIT ?", j.table))
	if err != nil {
		return fmt.Errorf("journalstore: prepare tail: %w", err)
	}
	j.stmtClear, err = j.db.Prepare(fmt.Sprintf("DELETE FROM %s", j.table))
	if err != nil {
		return fmt.Errorf("journalstore: prepare clear: %w", err)
	}
	return nil
}

// Append implements meshmemory.Journal.
func (j *SQLiteJournal) Append(ctx context.Context, record meshmemory.MemoryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("journalstore: marshal record: %w", err)
	}
	if _, err := j.stmtAppend.ExecContext(ctx, string(payload)); err != nil {
		return fmt.Errorf("journalstore: insert record: %w", err)
	}
	return nil
}

// Tail implements meshmemory.Journal, returning the most recent limit
// records in oldest-first order.
func (j *SQLiteJournal) Tail(ctx context.Context, limit int) ([]meshmemory.MemoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.stmtTail.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("journalstore: query tail: %w", err)
	}
	defer rows.Close()

	var reversed []meshmemory.MemoryRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("journalstore: scan record: %w", err)
		}
		var record meshmemory.MemoryRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("journalstore: unmarshal record: %w", err)
		}
		reversed = append(reversed, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journalstore: iterate tail rows: %w", err)
	}

	records := make([]meshmemory.MemoryRecord, len(reversed))
	for i, record := range reversed {
		records[len(reversed)-1-i] = record
	}
	return records, nil
}

// Clear implements meshmemory.Journal.
func (j *SQLiteJournal) Clear(ctx context.Context) error {
	if _, err := j.stmtClear.ExecContext(ctx); err != nil {
		return fmt.Errorf("journalstore: delete rows: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
