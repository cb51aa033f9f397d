// Package journalstore supplies SQL-backed meshmemory.Journal
// implementations, proving the journal contract is storage-agnostic beyond
// the default file-backed journal.
package journalstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/yafatek/mxp-agents-runtime/internal/meshmemory"
)

// PostgresConfig holds connection parameters for a Postgres-backed journal.
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sensible defaults for local development.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Database:        "mxp_agents",
		SSLMode:         "disable",
		Table:           "memory_journal",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresJournal is a meshmemory.Journal backed by a Postgres table storing
// one JSON-encoded record per row in append order.
type PostgresJournal struct {
	db    *sql.DB
	table string

	stmtAppend *sql.Stmt
	stmtTail   *sql.Stmt
	stmtClear  *sql.Stmt
}

// OpenPostgresJournal connects to Postgres and ensures the journal table
// exists.
func OpenPostgresJournal(ctx context.Context, config PostgresConfig) (*PostgresJournal, error) {
	if config.Table == "" {
		config.Table = DefaultPostgresConfig().Table
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("journalstore: open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journalstore: ping postgres: %w", err)
	}

	journal := &PostgresJournal{db: db, table: config.Table}
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

func (j *PostgresJournal) ensureSchema(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			record JSONB NOT NULL
		)
	`, j.table))
	if err != nil {
		return fmt.Errorf("journalstore: create postgres journal table: %w", err)
	}
	return nil
}

func (j *PostgresJournal) prepareStatements() error {
	var err error
	j.stmtAppend, err = j.db.Prepare(fmt.Sprintf("INSERT INTO %s (record) VALUES ($1)", j.table))
	if err != nil {
		return fmt.Errorf("journalstore: prepare append: %w", err)
	}
	j.stmtTail, err = j.db.Prepare(fmt.Sprintf(
		"SELECT record FROM %s ORDER BY seq DESC LIMIT $1", j.table,
	))
	if err != nil {
		return fmt.Errorf("journalstore: prepare tail: %w", err)
	}
	j.stmtClear, err = j.db.Prepare(fmt.Sprintf("TRUNCATE TABLE %s", j.table))
	if err != nil {
		return fmt.Errorf("journalstore: prepare clear: %w", err)
	}
	return nil
}

// Append implements meshmemory.Journal.
func (j *PostgresJournal) Append(ctx context.Context, record meshmemory.MemoryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("journalstore: marshal record: %w", err)
	}
	if _, err := j.stmtAppend.ExecContext(ctx, payload); err != nil {
		return fmt.Errorf("journalstore: insert record: %w", err)
	}
	return nil
}

// Tail implements meshmemory.Journal, returning the most recent limit
// records in oldest-first order.
func (j *PostgresJournal) Tail(ctx context.Context, limit int) ([]meshmemory.MemoryRecord, error) {
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
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("journalstore: scan record: %w", err)
		}
		var record meshmemory.MemoryRecord
		if err := json.Unmarshal(payload, &record); err != nil {
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
func (j *PostgresJournal) Clear(ctx context.Context) error {
	if _, err := j.stmtClear.ExecContext(ctx); err != nil {
		return fmt.Errorf("journalstore: truncate table: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (j *PostgresJournal) Close() error {
	return j.db.Close()
}
