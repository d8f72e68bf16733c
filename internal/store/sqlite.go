package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

func openBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(50*time.Millisecond))
}

// NewSQLiteDB opens the database at path (":memory:" for a private in-memory
// database) and waits for it to answer a ping.
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite is not concurrent for writes; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{db: db}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return s, nil
}

// isTransient reports whether err is a busy or locked database that may clear up.
func isTransient(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, openBackoff(), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if isTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return withRetry(ctx, s.db.PingContext)
}

// Migrate applies the embedded goose migrations. Applied versions are skipped.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	return withRetry(ctx, func(ctx context.Context) error {
		if _, err := provider.Up(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	})
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteDB) SchemaVersion(ctx context.Context) (int64, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveRun saves an estimate run to the database
func (s *SQLiteDB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.ConfigJSON == "" {
		run.ConfigJSON = "{}"
	}

	query := `INSERT INTO runs (
		id, method, config_json, seed, generator, mode, workers,
		tries, hits, estimate, degenerate, duration_ms, engine_version, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Method, run.ConfigJSON, run.Seed, run.Generator, run.Mode, run.Workers,
		run.Tries, run.Hits, run.Estimate, boolInt(run.Degenerate), run.DurationMs,
		run.EngineVersion, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = `id, method, config_json, seed, generator, mode, workers,
	tries, hits, estimate, degenerate, duration_ms, engine_version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var degenerate int
	var estimate sql.NullFloat64

	err := row.Scan(
		&run.ID, &run.Method, &run.ConfigJSON, &run.Seed, &run.Generator, &run.Mode, &run.Workers,
		&run.Tries, &run.Hits, &estimate, &degenerate, &run.DurationMs, &run.EngineVersion,
		&run.CreatedAt,
	)
	if err != nil {
		return Run{}, err
	}

	// Handle nullable fields
	if estimate.Valid {
		run.Estimate = &estimate.Float64
	}
	run.Degenerate = degenerate == 1
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteDB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns retrieves runs newest first with pagination and filtering
func (s *SQLiteDB) ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error) {
	// Build WHERE clause for filtering
	whereClause := ""
	args := []any{}

	if query.Method != "" {
		whereClause = "WHERE method = ?"
		args = append(args, query.Method)
	}

	var totalCount int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs "+whereClause, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 50
	}
	if query.Page <= 0 {
		query.Page = 1
	}

	totalPages := (totalCount + query.PerPage - 1) / query.PerPage
	offset := (query.Page - 1) * query.PerPage

	mainQuery := `SELECT ` + runColumns + ` FROM runs ` + whereClause + `
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
	args = append(args, query.PerPage, offset)

	rows, err := s.db.QueryContext(ctx, mainQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, query.PerPage)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages,
	}, nil
}

// SaveSweep stores a sweep and its points in one transaction.
func (s *SQLiteDB) SaveSweep(ctx context.Context, sw *Sweep) error {
	if sw.ID == "" {
		sw.ID = uuid.New().String()
	}
	if sw.CreatedAt.IsZero() {
		sw.CreatedAt = time.Now().UTC()
	}
	if sw.ConfigJSON == "" {
		sw.ConfigJSON = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO sweeps (
		id, method, config_json, mode, base, min_exp, max_exp, series_count,
		mean_relative_error, std_relative_error, duration_ms, engine_version, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sw.ID, sw.Method, sw.ConfigJSON, sw.Mode, sw.Base, sw.MinExp, sw.MaxExp, sw.SeriesCount,
		sw.MeanRelativeError, sw.StdRelativeError, sw.DurationMs, sw.EngineVersion, sw.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sweep: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sweep_points (
		sweep_id, series_index, seed, needle_length, exponent, tries, hits, estimate, degenerate
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range sw.Points {
		_, err := stmt.ExecContext(ctx,
			sw.ID, p.SeriesIndex, p.Seed, p.NeedleLength, p.Exponent, p.Tries, p.Hits,
			p.Estimate, boolInt(p.Degenerate),
		)
		if err != nil {
			return fmt.Errorf("failed to save sweep point: %w", err)
		}
	}

	return tx.Commit()
}

// GetSweep retrieves a sweep with its points ordered by series and exponent.
func (s *SQLiteDB) GetSweep(ctx context.Context, id string) (*Sweep, error) {
	var sw Sweep
	err := s.db.QueryRowContext(ctx, `SELECT
		id, method, config_json, mode, base, min_exp, max_exp, series_count,
		mean_relative_error, std_relative_error, duration_ms, engine_version, created_at
		FROM sweeps WHERE id = ?`, id).Scan(
		&sw.ID, &sw.Method, &sw.ConfigJSON, &sw.Mode, &sw.Base, &sw.MinExp, &sw.MaxExp,
		&sw.SeriesCount, &sw.MeanRelativeError, &sw.StdRelativeError, &sw.DurationMs,
		&sw.EngineVersion, &sw.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sweep %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		series_index, seed, needle_length, exponent, tries, hits, estimate, degenerate
		FROM sweep_points WHERE sweep_id = ?
		ORDER BY series_index, exponent`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p SweepPoint
		var degenerate int
		var estimate sql.NullFloat64
		if err := rows.Scan(&p.SeriesIndex, &p.Seed, &p.NeedleLength, &p.Exponent,
			&p.Tries, &p.Hits, &estimate, &degenerate); err != nil {
			return nil, fmt.Errorf("failed to scan sweep point: %w", err)
		}
		if estimate.Valid {
			p.Estimate = &estimate.Float64
		}
		p.Degenerate = degenerate == 1
		sw.Points = append(sw.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweep points: %w", err)
	}

	return &sw, nil
}
