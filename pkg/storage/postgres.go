package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/fogcast/cron-runner/pkg/logger"
)

// PgxConn is the subset of pgxpool.Pool used by PostgresWriter
type PgxConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var pointColumns = []string{"time", "measurement", "tags", "fields"}

// PostgresWriter stores points in a single table with JSONB tags and fields.
// It is the alternative time-series sink for deployments without InfluxDB.
type PostgresWriter struct {
	db     PgxConn
	table  string
	logger *logger.Logger
	closer func()
}

// NewPostgresWriter creates the writer. closer, if set, runs on Close.
func NewPostgresWriter(db PgxConn, table string, closer func()) *PostgresWriter {
	return &PostgresWriter{
		db:     db,
		table:  table,
		logger: logger.New("postgres-writer"),
		closer: closer,
	}
}

// CreateTableSQL returns the DDL for the points table
func CreateTableSQL(table string) string {
	quoted := pq.QuoteIdentifier(table)
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	time TIMESTAMPTZ NOT NULL,
	measurement TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '{}',
	fields JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS %s ON %s (measurement, time);`,
		quoted,
		pq.QuoteIdentifier(table+"_measurement_time_idx"),
		quoted,
	)
}

// EnsureSchema creates the points table if it does not exist
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	_, err := w.db.Exec(ctx, CreateTableSQL(w.table))
	w.logger.LogDatabaseOperation("ensure_schema", w.table, 0, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.table, err)
	}
	return nil
}

func (w *PostgresWriter) WritePoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	rows, err := pointRows(points)
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := w.db.CopyFrom(ctx, pgx.Identifier{w.table}, pointColumns, pgx.CopyFromRows(rows))
	w.logger.LogDatabaseOperation("copy_points", w.table, int(n), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to copy %d points into %s: %w", len(points), w.table, err)
	}
	return nil
}

func (w *PostgresWriter) Close() error {
	if w.closer != nil {
		w.closer()
	}
	return nil
}

func pointRows(points []Point) ([][]any, error) {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags: %w", err)
		}
		fields, err := json.Marshal(p.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fields of %s point: %w", p.Measurement, err)
		}
		rows = append(rows, []any{p.Time.UTC(), p.Measurement, tags, fields})
	}
	return rows, nil
}
