package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logsift/logsift/internal/model"
)

const createLogsTable = `
CREATE TABLE IF NOT EXISTS logs (
	ts          TIMESTAMP,
	level       VARCHAR,
	message     VARCHAR,
	raw_line    VARCHAR,
	source_file VARCHAR,
	line_number INTEGER,
	fields      VARCHAR
)`

const insertLog = `
INSERT INTO logs (ts, level, message, raw_line, source_file, line_number, fields)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// DuckDB persists records into an embedded DuckDB database. Records
// without a resolved timestamp are stored with a NULL ts column.
type DuckDB struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewDuckDB opens (creating if needed) a DuckDB database at path and
// ensures the logs table exists. An empty path opens an in-memory
// database.
func NewDuckDB(path string) (*DuckDB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("sink: opening duckdb: %w", err)
	}

	if _, err := db.Exec(createLogsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: creating logs table: %w", err)
	}

	stmt, err := db.Prepare(insertLog)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: preparing insert: %w", err)
	}

	return &DuckDB{db: db, stmt: stmt}, nil
}

// Insert implements Sink.
func (s *DuckDB) Insert(ctx context.Context, rec *model.Record) error {
	var ts any
	if rec.HasTimestamp {
		ts = rec.Timestamp
	}

	var fields any
	if len(rec.Fields) > 0 {
		data, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("sink: encoding fields: %w", err)
		}
		fields = string(data)
	}

	if _, err := s.stmt.ExecContext(ctx, ts, rec.Level, rec.Message,
		rec.RawLine, rec.SourceFile, rec.LineNumber, fields); err != nil {
		return fmt.Errorf("sink: inserting record: %w", err)
	}
	return nil
}

// Count returns the number of rows in the logs table.
func (s *DuckDB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("sink: counting rows: %w", err)
	}
	return n, nil
}

// Close flushes and closes the database.
func (s *DuckDB) Close() error {
	if s.stmt != nil {
		s.stmt.Close()
	}
	return s.db.Close()
}
