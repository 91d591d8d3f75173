// Package runlog keeps a local history of fill and clear runs in SQLite:
// one row per run plus one row per folder outcome. It is write-mostly and
// never consulted by the convergence engine itself.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("runlog: run not found")

// dirPerms is used when creating the database directory.
const dirPerms = 0o700

// Run outcomes written by FinishRun.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

const casesSep = ","

// Run is one invocation of fill or clear.
type Run struct {
	ID          string    `json:"id"`
	Command     string    `json:"command"`
	Host        string    `json:"host"`
	Cases       []string  `json:"cases"`
	Target      int       `json:"target,omitempty"`
	Concurrency int       `json:"concurrency"`
	Purge       bool      `json:"purge,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"` // zero while the run is open
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Canceled    int       `json:"canceled"`
	Peak        int       `json:"peak_workers"`
	Outcome     string    `json:"outcome,omitempty"`
}

// Summary holds the totals written when a run finishes.
type Summary struct {
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Canceled  int    `json:"canceled"`
	Peak      int    `json:"peak_workers"`
	Outcome   string `json:"outcome"`
}

// FolderRecord is the recorded outcome of one folder.
type FolderRecord struct {
	RunID      string        `json:"run_id"`
	Case       string        `json:"case"`
	FolderID   string        `json:"folder_id"`
	Status     string        `json:"status"`
	Initial    int           `json:"initial"`
	Final      int           `json:"final"`
	Mutations  int           `json:"mutations"`
	Requested  int           `json:"requested"`
	Purged     bool          `json:"purged,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Store is the SQLite-backed run history.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the database at dbPath and applies
// pending migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, dirPerms); err != nil {
			return nil, fmt.Errorf("runlog: creating directory %s: %w", dir, err)
		}
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("runlog: opening database %s: %w", dbPath, err)
	}

	// Results arrive from many workers; one connection serializes writes.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("run log opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun inserts an open run and returns its ID. A fresh UUID is
// assigned when r.ID is empty; StartedAt defaults to now.
func (s *Store) BeginRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	if r.StartedAt.IsZero() {
		r.StartedAt = s.nowFunc()
	}

	_, err := s.db.ExecContext(ctx, sqlInsertRun,
		r.ID, r.Command, r.Host, strings.Join(r.Cases, casesSep), r.Target,
		r.Concurrency, boolToInt(r.Purge), r.StartedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("runlog: inserting run: %w", err)
	}

	return r.ID, nil
}

// RecordFolder stores one folder outcome. Recording the same folder twice
// in a run keeps the latest row.
func (s *Store) RecordFolder(ctx context.Context, rec FolderRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.nowFunc()
	}

	_, err := s.db.ExecContext(ctx, sqlUpsertFolder,
		rec.RunID, rec.Case, rec.FolderID, rec.Status, rec.Initial, rec.Final,
		rec.Mutations, rec.Requested, boolToInt(rec.Purged), nullString(rec.Error),
		rec.Duration.Milliseconds(), rec.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("runlog: recording folder %s/%s: %w", rec.Case, rec.FolderID, err)
	}

	return nil
}

// FinishRun closes a run with its totals.
func (s *Store) FinishRun(ctx context.Context, id string, sum Summary) error {
	res, err := s.db.ExecContext(ctx, sqlFinishRun,
		s.nowFunc().UnixNano(), sum.Succeeded, sum.Failed, sum.Canceled, sum.Peak, sum.Outcome, id,
	)
	if err != nil {
		return fmt.Errorf("runlog: finishing run %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("runlog: finishing run %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means
// no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun returns one run by ID, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, sqlGetRun, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return r, err
}

// FolderResults returns the folder outcomes of a run ordered by case and
// folder ID.
func (s *Store) FolderResults(ctx context.Context, runID string) ([]FolderRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlFolderResults, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: listing folder results: %w", err)
	}
	defer rows.Close()

	var out []FolderRecord

	for rows.Next() {
		var (
			rec        FolderRecord
			purged     int
			errText    sql.NullString
			durationMS int64
			recordedAt int64
		)

		if err := rows.Scan(&rec.RunID, &rec.Case, &rec.FolderID, &rec.Status, &rec.Initial,
			&rec.Final, &rec.Mutations, &rec.Requested, &purged, &errText, &durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("runlog: scanning folder result: %w", err)
		}

		rec.Purged = purged != 0
		rec.Error = errText.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.RecordedAt = time.Unix(0, recordedAt)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: iterating folder results: %w", err)
	}

	return out, nil
}

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r          Run
		cases      string
		purge      int
		startedAt  int64
		finishedAt sql.NullInt64
		outcome    sql.NullString
	)

	err := row.Scan(&r.ID, &r.Command, &r.Host, &cases, &r.Target, &r.Concurrency, &purge,
		&startedAt, &finishedAt, &r.Succeeded, &r.Failed, &r.Canceled, &r.Peak, &outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("runlog: scanning run: %w", err)
	}

	if cases != "" {
		r.Cases = strings.Split(cases, casesSep)
	}

	r.Purge = purge != 0
	r.StartedAt = time.Unix(0, startedAt)

	if finishedAt.Valid {
		r.FinishedAt = time.Unix(0, finishedAt.Int64)
	}

	r.Outcome = outcome.String

	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const runColumns = `id, command, host, cases, target, concurrency, purge,
	started_at, finished_at, succeeded, failed, canceled, peak, outcome`

const (
	sqlInsertRun = `INSERT INTO runs (id, command, host, cases, target, concurrency, purge, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqlFinishRun = `UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, canceled = ?,
		peak = ?, outcome = ? WHERE id = ?`

	sqlListRuns = `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT ?`

	sqlGetRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	sqlUpsertFolder = `INSERT INTO folder_results (run_id, case_name, folder_id, status, initial,
		final, mutations, requested, purged, error, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, case_name, folder_id) DO UPDATE SET
			status = excluded.status, initial = excluded.initial, final = excluded.final,
			mutations = excluded.mutations, requested = excluded.requested,
			purged = excluded.purged, error = excluded.error,
			duration_ms = excluded.duration_ms, recorded_at = excluded.recorded_at`

	sqlFolderResults = `SELECT run_id, case_name, folder_id, status, initial, final, mutations,
		requested, purged, error, duration_ms, recorded_at
		FROM folder_results WHERE run_id = ? ORDER BY case_name, folder_id`
)
