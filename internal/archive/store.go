// Package archive persists classification results to DuckDB so past runs
// and served predictions can be queried after the fact. It is optional:
// both the batch runner and the service work without a store attached.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/netsift/flowtriage/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
    ts              TIMESTAMP NOT NULL,
    proto           VARCHAR NOT NULL,
    state           VARCHAR NOT NULL,
    spkts           BIGINT NOT NULL,
    dpkts           BIGINT NOT NULL,
    sbytes          BIGINT NOT NULL,
    dbytes          BIGINT NOT NULL,
    dur             DOUBLE NOT NULL,
    binary_label    VARCHAR NOT NULL,
    secondary_label VARCHAR NOT NULL,
    final_label     VARCHAR NOT NULL
)`

// Record is one archived classification.
type Record struct {
	Ts     time.Time
	Flow   model.FeatureVector
	Labels model.LabelTriple
}

// Store manages the DuckDB database holding archived classifications.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewStore opens or creates the archive database. An empty path opens an
// in-memory database, which is only useful in tests.
func NewStore(dbPath string) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating classifications table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch writes a batch of records in one transaction. Writes are
// serialized; readers go through DuckDB's own concurrency control.
func (s *Store) InsertBatch(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO classifications VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		ts := r.Ts
		if ts.IsZero() {
			ts = time.Now()
		}
		_, err := stmt.Exec(ts,
			r.Flow.Proto, r.Flow.State,
			r.Flow.Spkts, r.Flow.Dpkts, r.Flow.Sbytes, r.Flow.Dbytes, r.Flow.Dur,
			r.Labels.Binary, r.Labels.Secondary, r.Labels.Final)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting classification: %w", err)
		}
	}
	return tx.Commit()
}

// LabelCounts returns the archived final-label distribution.
func (s *Store) LabelCounts() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT final_label, COUNT(*) FROM classifications GROUP BY final_label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var label string
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		counts[label] = count
	}
	return counts, rows.Err()
}

// TotalCount returns the number of archived classifications.
func (s *Store) TotalCount() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM classifications`).Scan(&n)
	return n, err
}
