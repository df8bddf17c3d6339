package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hamzali/psdbench"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrDBNotInitialized  = errors.New("database connection not initialized")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

var schemas = map[string]string{
	"postgres": `
CREATE TABLE IF NOT EXISTS benchmark_results (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	file TEXT NOT NULL,
	decoder TEXT NOT NULL,
	apply_opacity BOOLEAN NOT NULL,
	parse_ms DOUBLE PRECISION NOT NULL,
	image_render_ms DOUBLE PRECISION NOT NULL,
	layer_render_ms DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	"sqlite": `
CREATE TABLE IF NOT EXISTS benchmark_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	file TEXT NOT NULL,
	decoder TEXT NOT NULL,
	apply_opacity BOOLEAN NOT NULL,
	parse_ms REAL NOT NULL,
	image_render_ms REAL NOT NULL,
	layer_render_ms REAL NOT NULL,
	created_at DATETIME NOT NULL
)`,
	"mysql": `
CREATE TABLE IF NOT EXISTS benchmark_results (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id VARCHAR(64) NOT NULL,
	file VARCHAR(1024) NOT NULL,
	decoder VARCHAR(64) NOT NULL,
	apply_opacity BOOLEAN NOT NULL,
	parse_ms DOUBLE NOT NULL,
	image_render_ms DOUBLE NOT NULL,
	layer_render_ms DOUBLE NOT NULL,
	created_at DATETIME(6) NOT NULL
)`,
}

type Database struct {
	conn   *sql.DB
	driver string
}

// Row is one stored measurement.
type Row struct {
	ID           int64
	RunID        string
	File         string
	Decoder      string
	ApplyOpacity bool
	Result       psdbench.BenchmarkResult
	CreatedAt    time.Time
}

// New connects to the store and creates the results table if needed. MySQL
// data source names need parseTime=true for Results to scan timestamps.
func New(driver, dsn string) (*Database, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open db connection: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("can't ping db: %w", err)
	}

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("can't create results table: %w", err)
	}

	return &Database{conn: db, driver: driver}, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (db *Database) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

const insertQuery = `
INSERT INTO benchmark_results
	(run_id, file, decoder, apply_opacity, parse_ms, image_render_ms, layer_render_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Record stores a measurement. It makes Database a psdbench.Sink.
func (db *Database) Record(m psdbench.Measurement) error {
	if db.conn == nil {
		return ErrDBNotInitialized
	}

	_, err := db.conn.Exec(
		db.rebind(insertQuery),
		m.RunID,
		m.File,
		m.Decoder,
		m.Options.ApplyOpacity,
		m.Result.ParseTime,
		m.Result.ImageRenderTime,
		m.Result.LayerRenderTime,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	return nil
}

const selectQuery = `
SELECT id, run_id, file, decoder, apply_opacity, parse_ms, image_render_ms, layer_render_ms, created_at
FROM benchmark_results
ORDER BY id DESC
LIMIT ?`

// Results returns up to limit rows, newest first.
func (db *Database) Results(limit int) ([]Row, error) {
	if db.conn == nil {
		return nil, ErrDBNotInitialized
	}

	rows, err := db.conn.Query(db.rebind(selectQuery), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var out []Row

	for rows.Next() {
		var r Row

		err = rows.Scan(
			&r.ID,
			&r.RunID,
			&r.File,
			&r.Decoder,
			&r.ApplyOpacity,
			&r.Result.ParseTime,
			&r.Result.ImageRenderTime,
			&r.Result.LayerRenderTime,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return out, nil
}

func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}

	return db.conn.Close()
}
