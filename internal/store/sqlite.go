package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/ppsched/pkg/model"

	_ "modernc.org/sqlite"
)

// deliverTimeout bounds a single Deliver write.
const deliverTimeout = 5 * time.Second

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	runID  string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	runID := "run_" + uuid.NewString()
	return &SQLiteStore{
		db:     db,
		runID:  runID,
		logger: logger.With("component", "store", "run_id", runID),
	}, nil
}

// RunID identifies the scheduler run whose results this store writes.
func (s *SQLiteStore) RunID() string {
	return s.runID
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// Deliver records r. It lets the store be used as a result sink.
func (s *SQLiteStore) Deliver(r model.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	return s.SaveResult(ctx, r)
}

// SaveResult inserts r for the current run. Saving the same Job twice fails.
func (s *SQLiteStore) SaveResult(ctx context.Context, r model.Result) error {
	s.logger.Debug("sql", "op", "insert", "table", "results", "job_id", r.JobID)

	counters := r.PerfCounters
	if counters == nil {
		counters = []model.PerfCounters{}
	}
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal perf counters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, job_id, session, user_ref, status, sub_jobs, perf_counters, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, int64(r.JobID), string(r.Session), r.UserRef, string(r.Status),
		len(counters), string(countersJSON), r.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert result %d: %w", r.JobID, err)
	}
	return nil
}

const resultColumns = `job_id, session, user_ref, status, perf_counters, completed_at`

// GetResult returns the result of Job id from the current run, or nil if
// none was recorded.
func (s *SQLiteStore) GetResult(ctx context.Context, id model.JobID) (*model.Result, error) {
	s.logger.Debug("sql", "op", "select", "table", "results", "job_id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE run_id = ? AND job_id = ?`, s.runID, int64(id))
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListResults returns results of the current run, newest first, with the
// total matching count.
func (s *SQLiteStore) ListResults(ctx context.Context, opts model.ListOptions) ([]*model.Result, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "results", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	whereClauses := []string{"run_id = ?"}
	countArgs := []any{s.runID}

	if opts.Status != "" {
		whereClauses = append(whereClauses, "status = ?")
		countArgs = append(countArgs, opts.Status)
	}
	if opts.Session != "" {
		whereClauses = append(whereClauses, "session = ?")
		countArgs = append(countArgs, string(opts.Session))
	}
	whereSQL := " WHERE " + strings.Join(whereClauses, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT ` + resultColumns + ` FROM results` + whereSQL +
		` ORDER BY completed_at DESC, job_id DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []*model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// ListResultsBySession returns the current run's results owned by session.
func (s *SQLiteStore) ListResultsBySession(ctx context.Context, session model.SessionID, opts model.ListOptions) ([]*model.Result, int, error) {
	opts.Session = session
	return s.ListResults(ctx, opts)
}

// CountByStatus returns how many results of the current run ended in each status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	s.logger.Debug("sql", "op", "count", "table", "results")

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM results WHERE run_id = ? GROUP BY status`, s.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (*model.Result, error) {
	var r model.Result
	var jobID int64
	var session, status, countersJSON, completedAt string

	if err := sc.Scan(&jobID, &session, &r.UserRef, &status, &countersJSON, &completedAt); err != nil {
		return nil, err
	}
	r.JobID = model.JobID(jobID)
	r.Session = model.SessionID(session)
	r.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(countersJSON), &r.PerfCounters); err != nil {
		return nil, fmt.Errorf("unmarshal perf counters: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	r.CompletedAt = t
	return &r, nil
}
