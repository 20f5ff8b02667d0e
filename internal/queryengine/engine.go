// Package queryengine executes learner SQL against the in-memory practice
// dataset.
package queryengine

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

//go:embed dataset.sql
var dataset string

// DefaultTimeout bounds a single query
const DefaultTimeout = 5 * time.Second

// ErrEmptyQuery is reported for blank submissions
var ErrEmptyQuery = errors.New("query is empty")

// Table describes one table of the dataset
type Table struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// Config holds engine settings
type Config struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Engine runs queries on a private in-memory SQLite database. Every query
// runs in a transaction that is rolled back, so the dataset never changes.
type Engine struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// New opens the database and loads the dataset
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	// Each connection to :memory: is its own database; keep exactly one alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	e := &Engine{db: db, timeout: cfg.Timeout, logger: cfg.Logger}
	if err := e.seed(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) seed(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, dataset); err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	return nil
}

// Reset drops every table and reloads the dataset.
func (e *Engine) Reset(ctx context.Context) error {
	tables, err := e.Schema(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", t.Name)); err != nil {
			return fmt.Errorf("drop %s: %w", t.Name, err)
		}
	}
	e.logger.Info("dataset reset", "tables", len(tables))
	return e.seed(ctx)
}

// Execute runs query and returns its last result set. Engine errors are
// reported in the outcome, never as a Go error.
func (e *Engine) Execute(ctx context.Context, query string) domain.QueryOutcome {
	start := time.Now()
	if strings.TrimSpace(query) == "" {
		return domain.FailedOutcome(ErrEmptyQuery.Error(), time.Since(start))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.run(ctx, query)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("query timed out after %s", e.timeout)
		}
		e.logger.Debug("query failed", "error", err, "duration", elapsed)
		return domain.FailedOutcome(err.Error(), elapsed)
	}
	e.logger.Debug("query executed", "rows", result.RowCount(), "duration", elapsed)
	return domain.QueryOutcome{Success: true, Result: result, Duration: elapsed}
}

func (e *Engine) run(ctx context.Context, query string) (domain.QueryResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.QueryResult{}, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return domain.QueryResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{}, err
	}
	result := domain.QueryResult{Columns: cols, Rows: [][]domain.Cell{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.QueryResult{}, err
		}
		row := make([]domain.Cell, len(cols))
		for i, v := range values {
			row[i] = normalize(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, err
	}
	return result, nil
}

func normalize(v any) domain.Cell {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return x
	}
}

// Schema lists the dataset tables in name order
func (e *Engine) Schema(ctx context.Context) ([]Table, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.SQL); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Close releases the database
func (e *Engine) Close() error {
	return e.db.Close()
}
