// Package store persists profiling runs and their records in DuckDB.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/perfprobe/internal/collector"
	"github.com/coral-mesh/perfprobe/internal/duckdb"
	perrors "github.com/coral-mesh/perfprobe/internal/errors"
	"github.com/coral-mesh/perfprobe/internal/profiler"
)

const (
	runsTable    = "runs"
	recordsTable = "records"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Store wraps a DuckDB connection holding run history.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger

	runs    *duckdb.Table[RunRow]
	records *duckdb.Table[RecordRow]
}

// Options configures Open.
type Options struct {
	// ReadOnly skips schema creation and opens without the write lock.
	ReadOnly bool
}

// Open opens (creating when needed) the history database at path and initializes the schema.
// An empty path opens an in-memory database.
func Open(ctx context.Context, path string, opts Options, logger zerolog.Logger) (*Store, error) {
	logger = logger.With().Str("component", "store").Logger()

	if path != "" && !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := duckdb.OpenDB(ctx, path, duckdb.Options{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		logger:  logger,
		runs:    duckdb.NewTable[RunRow](db, runsTable),
		records: duckdb.NewTable[RecordRow](db, recordsTable),
	}

	if !opts.ReadOnly {
		if err := s.initSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	mode := "read-write"
	if opts.ReadOnly {
		mode = "read-only"
	}
	logger.Debug().
		Str("path", path).
		Str("mode", mode).
		Msg("History database opened")

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range []string{
		s.runs.CreateTableSQL(),
		s.records.CreateTableSQL(),
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)",
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.Exec("CHECKPOINT"); err != nil {
		s.logger.Debug().Err(err).Msg("Checkpoint before close failed")
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// BeginRun creates a run descriptor with a time-ordered ID. It is not persisted until SaveRun.
func BeginRun(host collector.HostInfo, version string, jobs int) (*RunRow, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	run := &RunRow{
		ID:        id.String(),
		StartedAt: time.Now().UTC(),
		Version:   version,
		Jobs:      jobs,
	}
	run.setHost(host)
	return run, nil
}

// SaveRun stores the run summary and every record in a single transaction.
// Per-status counters and FinishedAt are derived from records when unset.
func (s *Store) SaveRun(ctx context.Context, run *RunRow, records []profiler.Record) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	run.summarize(records)

	rows := make([]*RecordRow, len(records))
	for i, rec := range records {
		rows[i] = newRecordRow(run.ID, i, rec)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer perrors.DeferRollback(s.logger, tx)

	if err := duckdb.NewTable[RunRow](tx, runsTable).Upsert(ctx, run); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	if err := duckdb.NewTable[RecordRow](tx, recordsTable).BatchUpsert(ctx, rows); err != nil {
		return fmt.Errorf("save records for run %s: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Int("jobs", run.Jobs).
		Int("failed", run.Failed).
		Msg("Run saved")
	return nil
}

// ListFilter restricts ListRuns. Zero values are unbounded.
type ListFilter struct {
	Since    time.Time
	Until    time.Time
	Hostname string
	Limit    int
	Offset   int
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter ListFilter) ([]*RunRow, error) {
	b := duckdb.NewQueryBuilder(runsTable).
		TimeColumn("started_at").
		TimeRange(filter.Since, filter.Until).
		Eq("hostname", filter.Hostname).
		OrderBy("-started_at").
		Limit(filter.Limit).
		Offset(filter.Offset)

	if s.logger.GetLevel() <= zerolog.TraceLevel {
		query, args := b.MustBuild()
		s.logger.Trace().Str("query", duckdb.InterpolateQuery(query, args)).Msg("Listing runs")
	}

	runs, err := s.runs.Query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRow, error) {
	run, err := s.runs.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// RunRecords returns the records of a run in their original batch order.
func (s *Store) RunRecords(ctx context.Context, id string) ([]profiler.Record, error) {
	rows, err := s.records.Query(ctx, duckdb.NewQueryBuilder(recordsTable).
		Eq("run_id", id).
		OrderBy("idx"))
	if err != nil {
		return nil, fmt.Errorf("records for run %s: %w", id, err)
	}

	records := make([]profiler.Record, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}
