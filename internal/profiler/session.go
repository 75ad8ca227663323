package profiler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/perfprobe/internal/constants"
	"github.com/coral-mesh/perfprobe/internal/safe"
	"github.com/coral-mesh/perfprobe/internal/sys/shell"
)

// Process is a spawned child as seen by a Session.
type Process interface {
	Handle
	StartedAt() time.Time
	ExitedAt() time.Time
	Wait() shell.ExitStatus
	Terminate(grace time.Duration) error
}

// Spawner starts commands.
type Spawner interface {
	Spawn(command string) (Process, error)
}

// ShellSpawner spawns commands with internal/sys/shell.
type ShellSpawner struct {
	Config shell.Config
}

// NewShellSpawner creates a spawner using cfg for every command.
func NewShellSpawner(cfg shell.Config) *ShellSpawner {
	return &ShellSpawner{Config: cfg}
}

// Spawn starts command.
func (s *ShellSpawner) Spawn(command string) (Process, error) {
	p, err := shell.Spawn(s.Config, command)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// Interval is the time between two samples.
	Interval time.Duration
	// Timeout terminates a job that runs longer. Zero disables it.
	Timeout time.Duration
	// GracePeriod is the delay between SIGTERM and SIGKILL on termination.
	GracePeriod time.Duration
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Interval:    constants.DefaultSampleInterval,
		GracePeriod: constants.DefaultGracePeriod,
	}
}

// Session profiles a single job at a time.
type Session struct {
	spawner Spawner
	reader  Reader
	sampler *Sampler
	config  SessionConfig
	logger  zerolog.Logger
}

// NewSession creates a session.
func NewSession(spawner Spawner, reader Reader, config SessionConfig, logger zerolog.Logger) *Session {
	if config.Interval <= 0 {
		config.Interval = constants.DefaultSampleInterval
	}
	if config.GracePeriod < 0 {
		config.GracePeriod = 0
	}

	return &Session{
		spawner: spawner,
		reader:  reader,
		sampler: NewSampler(reader, logger),
		config:  config,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Sampler returns the sampler used for every job.
func (s *Session) Sampler() *Sampler {
	return s.sampler
}

// Profile runs job to completion and returns its record.
// Per-job failures are reported in the record, never as an error.
func (s *Session) Profile(ctx context.Context, job Job) Record {
	rec, _ := s.profile(ctx, job)
	return rec
}

// profile is Profile that also returns the spawn error, if any.
func (s *Session) profile(ctx context.Context, job Job) (Record, error) {
	logger := s.logger.With().Str("job", job.Name).Logger()

	netStart, netErr := s.reader.Read(ctx, SystemTarget())
	if netErr != nil && ctx.Err() == nil {
		logger.Debug().Err(netErr).Msg("System snapshot failed, network bytes unavailable")
	}

	p, err := s.spawner.Spawn(job.Command)
	if err != nil {
		rec := newRecord(job, StatusSpawnFailed)
		rec.Error = err.Error()
		logger.Warn().Err(err).Str("command", job.Command).Msg("Failed to spawn job")
		return rec, err
	}

	logger = logger.With().Int("pid", p.PID()).Logger()
	logger.Debug().Str("command", job.Command).Msg("Job started")

	sampleCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		sampleCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	usage, sampleErr := s.sampler.Run(sampleCtx, p, s.config.Interval)
	if sampleErr != nil {
		return s.abort(ctx, job, p, sampleErr, logger), nil
	}

	status := p.Wait()

	rec := newRecord(job, StatusCompleted)
	rec.ReturnCode = status.Code
	rec.TotalTime = wallTime(p)

	user := math.Max(usage.CPUUser, status.UserTime.Seconds())
	system := math.Max(usage.CPUSystem, status.SystemTime.Seconds())
	rec.UserTime = safe.NonNegative(user)
	rec.CPUTime = safe.NonNegative(user + system)
	rec.MaxMemoryUsage = max(usage.PeakRSS, status.MaxRSS)

	if status.Err != nil {
		rec.Status = StatusFailed
		rec.Error = fmt.Sprintf("wait: %v", status.Err)
	}

	netEnd, err := s.reader.Read(ctx, SystemTarget())
	if netErr == nil && err == nil &&
		!netStart.Missing.Has(MetricNetwork) && !netEnd.Missing.Has(MetricNetwork) {
		var sentClamped, recvClamped bool
		rec.BytesSent, sentClamped = safe.SubUint64(netEnd.BytesSent, netStart.BytesSent)
		rec.BytesRecv, recvClamped = safe.SubUint64(netEnd.BytesRecv, netStart.BytesRecv)
		if sentClamped || recvClamped {
			logger.Debug().
				Bool("sent_clamped", sentClamped).
				Bool("recv_clamped", recvClamped).
				Msg("Network counter went backwards, delta clamped to zero")
		}
	}

	event := logger.Info()
	if rec.Status != StatusCompleted {
		event = logger.Warn()
	}
	event = event.
		Str("status", string(rec.Status)).
		Int("return_code", rec.ReturnCode).
		Dur("total", time.Duration(rec.TotalTime*float64(time.Second))).
		Float64("cpu_seconds", rec.CPUTime).
		Uint64("max_rss", rec.MaxMemoryUsage).
		Uint64("bytes_sent", rec.BytesSent).
		Uint64("bytes_recv", rec.BytesRecv).
		Int("samples", usage.Samples)
	if usage.Missing != 0 {
		event = event.Str("missing", usage.Missing.String())
	}
	event.Msg("Job finished")

	return rec, nil
}

// abort terminates a child whose sampling ended early and returns a record with
// the resource metrics discarded.
func (s *Session) abort(ctx context.Context, job Job, p Process, cause error, logger zerolog.Logger) Record {
	var rec Record
	switch {
	case ctx.Err() != nil:
		rec = newRecord(job, StatusCancelled)
		rec.Error = ctx.Err().Error()
	case errors.Is(cause, context.DeadlineExceeded):
		rec = newRecord(job, StatusTimeout)
		rec.Error = fmt.Errorf("%w after %s", ErrTimeout, s.config.Timeout).Error()
	default:
		rec = newRecord(job, StatusFailed)
		rec.Error = cause.Error()
	}

	if err := p.Terminate(s.config.GracePeriod); err != nil {
		logger.Error().Err(err).Msg("Failed to terminate job")
	}

	// Terminate is bounded; a child it could not reap is left behind.
	status := shell.ExitStatus{Code: -1}
	select {
	case <-p.Done():
		status = p.Wait()
		rec.TotalTime = wallTime(p)
	default:
		rec.TotalTime = safe.Seconds(time.Since(p.StartedAt()))
		logger.Error().Msg("Job still running after termination, abandoning it")
	}
	rec.ReturnCode = status.Code

	logger.Warn().
		Str("status", string(rec.Status)).
		Str("error", rec.Error).
		Bool("signaled", status.Signaled).
		Msg("Job aborted")

	return rec
}

func wallTime(p Process) float64 {
	exited := p.ExitedAt()
	if exited.IsZero() {
		return 0
	}
	return safe.Seconds(exited.Sub(p.StartedAt()))
}
