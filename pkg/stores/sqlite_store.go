package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateEvaluation records an evaluation and its dependency snapshot in one
// transaction. Dependencies are stored under the evaluation's ID regardless
// of what their EvaluationID field holds.
func (s *SQLiteStore) CreateEvaluation(ctx context.Context, eval *Evaluation, deps []Dependency) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = s.RollbackTx(tx) }()

	query := `
		INSERT INTO evaluations (id, entry, kind, fingerprint, output, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		eval.ID,
		eval.Entry,
		eval.Kind,
		eval.Fingerprint,
		eval.Output,
		eval.Status,
		eval.Error,
		eval.DurationMS,
		eval.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}

	depQuery := `
		INSERT INTO evaluation_deps (evaluation_id, path, content_sha256)
		VALUES (?, ?, ?)
	`

	for _, dep := range deps {
		if _, err := tx.ExecContext(ctx, depQuery, eval.ID, dep.Path, dep.ContentSHA256); err != nil {
			return fmt.Errorf("failed to record dependency %s: %w", dep.Path, err)
		}
	}

	if err := s.CommitTx(tx); err != nil {
		return fmt.Errorf("failed to commit evaluation: %w", err)
	}

	return nil
}

// GetEvaluation retrieves an evaluation by ID
func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	query := `
		SELECT id, entry, kind, fingerprint, output, status, error, duration_ms, created_at
		FROM evaluations
		WHERE id = ?
	`

	eval := &Evaluation{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&eval.ID,
		&eval.Entry,
		&eval.Kind,
		&eval.Fingerprint,
		&eval.Output,
		&eval.Status,
		&eval.Error,
		&eval.DurationMS,
		&eval.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evaluation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	return eval, nil
}

// ListEvaluations lists evaluations with pagination, newest first
func (s *SQLiteStore) ListEvaluations(ctx context.Context, limit, offset int) ([]*Evaluation, error) {
	query := `
		SELECT id, entry, kind, fingerprint, output, status, error, duration_ms, created_at
		FROM evaluations
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	evals := []*Evaluation{}
	for rows.Next() {
		eval := &Evaluation{}
		err := rows.Scan(
			&eval.ID,
			&eval.Entry,
			&eval.Kind,
			&eval.Fingerprint,
			&eval.Output,
			&eval.Status,
			&eval.Error,
			&eval.DurationMS,
			&eval.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evals = append(evals, eval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return evals, nil
}

// DeleteEvaluation deletes an evaluation by ID. Recorded dependencies are
// removed by the cascade on evaluation_deps.
func (s *SQLiteStore) DeleteEvaluation(ctx context.Context, id string) error {
	query := `DELETE FROM evaluations WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("evaluation not found: %s", id)
	}

	return nil
}

// LookupCached returns the most recent successful evaluation matching the
// entry, kind and options fingerprint, or nil when there is none. Callers
// still check dependency freshness before reusing the output.
func (s *SQLiteStore) LookupCached(ctx context.Context, entry, kind, fingerprint string) (*Evaluation, error) {
	query := `
		SELECT id, entry, kind, fingerprint, output, status, error, duration_ms, created_at
		FROM evaluations
		WHERE entry = ? AND kind = ? AND fingerprint = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	eval := &Evaluation{}
	err := s.db.QueryRowContext(ctx, query, entry, kind, fingerprint, EvaluationSucceeded).Scan(
		&eval.ID,
		&eval.Entry,
		&eval.Kind,
		&eval.Fingerprint,
		&eval.Output,
		&eval.Status,
		&eval.Error,
		&eval.DurationMS,
		&eval.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cached evaluation: %w", err)
	}

	return eval, nil
}

// ListDependencies lists the dependency snapshot of an evaluation
func (s *SQLiteStore) ListDependencies(ctx context.Context, evaluationID string) ([]Dependency, error) {
	query := `
		SELECT evaluation_id, path, content_sha256
		FROM evaluation_deps
		WHERE evaluation_id = ?
		ORDER BY path ASC
	`

	rows, err := s.db.QueryContext(ctx, query, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	defer rows.Close()

	deps := []Dependency{}
	for rows.Next() {
		dep := Dependency{}
		if err := rows.Scan(&dep.EvaluationID, &dep.Path, &dep.ContentSHA256); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return deps, nil
}

// PruneBefore deletes evaluations created before the cutoff and returns the
// number of rows removed
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM evaluations WHERE created_at < ?`

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune evaluations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// HealthCheck verifies the database connection is alive
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
