package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"orthodeck/internal/config"
)

// Store manages job history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the jobs database file path.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new job in the created state.
func (s *Store) Create(ctx context.Context, id string, totalFiles int) (*Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("job id is required")
	}
	if totalFiles <= 0 {
		return nil, errors.New("job requires at least one input file")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, status, total_files, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id,
		StatusCreated,
		totalFiles,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID returns the job with the given identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := selectColumns + " FROM jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// MarkRunning transitions a created job to running. Transitioning a job
// already in a terminal state is a no-op.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusRunning,
		"UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		StatusCreated)
}

// MarkCompleted records a successful terminal result.
func (s *Store) MarkCompleted(ctx context.Context, id, outputArtifact, categoriesJSON string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, output_artifact = ?, categories_json = ?,
            processed_files = total_files, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, outputArtifact, categoriesJSON, timestamp, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	return s.checkTransitioned(ctx, res, id, StatusCompleted)
}

// MarkFailed records a failed terminal result with a user-visible message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, message, timestamp, id, StatusCreated, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return s.checkTransitioned(ctx, res, id, StatusFailed)
}

// MarkAborted records a client disconnect or shutdown abort.
func (s *Store) MarkAborted(ctx context.Context, id, reason string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusAborted, reason, timestamp, id, StatusCreated, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job aborted: %w", err)
	}
	return s.checkTransitioned(ctx, res, id, StatusAborted)
}

// UpdateProgress persists the latest processed-file count for a running job.
func (s *Store) UpdateProgress(ctx context.Context, id string, processedFiles int) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET processed_files = ?, updated_at = ? WHERE id = ? AND status = ?",
		processedFiles, timestamp, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// SweepStale aborts jobs left in a non-terminal state by a previous process
// (crash or unclean shutdown). Returns the number of jobs swept.
func (s *Store) SweepStale(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusAborted, AbortReasonShutdown, timestamp, StatusCreated, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Active    int
	Completed int
	Failed    int
	Aborted   int
}

// Health returns aggregate job diagnostics.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("job health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan job health: %w", err)
		}
		summary.Total += count
		switch status {
		case StatusCreated, StatusRunning:
			summary.Active += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusAborted:
			summary.Aborted += count
		}
	}
	return summary, rows.Err()
}

func (s *Store) transition(ctx context.Context, id string, to Status, query string, from Status) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, query, to, timestamp, id, from)
	if err != nil {
		return fmt.Errorf("transition job to %s: %w", to, err)
	}
	return s.checkTransitioned(ctx, res, id, to)
}

// checkTransitioned distinguishes a terminal-state no-op (allowed) from a
// transition on a job that doesn't exist (an error).
func (s *Store) checkTransitioned(ctx context.Context, res sql.Result, id string, to Status) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("job %s not found", id)
	}
	if existing.Status.Terminal() || existing.Status == to {
		return nil
	}
	return fmt.Errorf("job %s cannot move from %s to %s", id, existing.Status, to)
}

const selectColumns = `SELECT id, status, total_files, processed_files,
    output_artifact, categories_json, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var status, createdAt, updatedAt string
	if err := row.Scan(
		&job.ID,
		&status,
		&job.TotalFiles,
		&job.ProcessedFiles,
		&job.OutputArtifact,
		&job.CategoriesJSON,
		&job.ErrorMessage,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = Status(status)
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	return &job, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
