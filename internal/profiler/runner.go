package profiler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/perfprobe/internal/sys/shell"
)

// RecordFunc observes a finished record. index is the position of the job in the batch.
type RecordFunc func(index int, rec Record)

// Runner profiles a batch of jobs sequentially.
type Runner struct {
	session  *Session
	logger   zerolog.Logger
	onRecord RecordFunc
}

// NewRunner creates a runner using session for every job.
func NewRunner(session *Session, logger zerolog.Logger) *Runner {
	return &Runner{
		session: session,
		logger:  logger.With().Str("component", "runner").Logger(),
	}
}

// OnRecord registers fn to be called after each profiled job. Skipped jobs are not reported.
func (r *Runner) OnRecord(fn RecordFunc) *Runner {
	r.onRecord = fn
	return r
}

// RunAll profiles jobs in order and returns exactly one record per job, in input order.
//
// Job failures are recorded, not returned. After ctx is cancelled the in-flight job is
// recorded as cancelled, the remaining ones as skipped, and ctx.Err() is returned.
// When the system cannot spawn processes the batch is aborted the same way and the
// returned error wraps ErrSpawnUnavailable.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]Record, error) {
	records := make([]Record, len(jobs))

	r.logger.Info().Int("jobs", len(jobs)).Msg("Starting profiling run")

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			r.skipFrom(records, jobs, i)
			r.logger.Warn().Int("skipped", len(jobs)-i).Msg("Profiling run cancelled")
			return records, err
		}

		rec, err := r.session.profile(ctx, job)
		records[i] = rec
		if r.onRecord != nil {
			r.onRecord(i, rec)
		}

		if shell.IsSystem(err) {
			r.skipFrom(records, jobs, i+1)
			r.logger.Error().Err(err).Int("skipped", len(jobs)-i-1).Msg("Aborting profiling run")
			return records, fmt.Errorf("%w: %w", ErrSpawnUnavailable, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return records, err
	}

	r.logger.Info().Int("jobs", len(jobs)).Msg("Profiling run finished")
	return records, nil
}

func (r *Runner) skipFrom(records []Record, jobs []Job, from int) {
	for j := from; j < len(jobs); j++ {
		rec := newRecord(jobs[j], StatusSkipped)
		rec.Error = "not started"
		records[j] = rec
	}
}
