package profiler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/perfprobe/internal/constants"
	"github.com/coral-mesh/perfprobe/internal/sys/proc"
)

// Handle is the view of a running child the Sampler needs.
type Handle interface {
	PID() int
	IsAlive() bool
	Done() <-chan struct{}
}

// PeakFunc returns the kernel-tracked peak RSS of a live process in bytes.
type PeakFunc func(pid int) (uint64, error)

// Sampler polls a Reader for one child process until it exits.
type Sampler struct {
	reader Reader
	peak   PeakFunc
	logger zerolog.Logger
}

// NewSampler creates a sampler reading through reader.
// On Linux the VmHWM high-water mark is folded into every sample.
func NewSampler(reader Reader, logger zerolog.Logger) *Sampler {
	return &Sampler{
		reader: reader,
		peak:   proc.ReadPeakRSS,
		logger: logger.With().Str("component", "sampler").Logger(),
	}
}

// WithPeakFunc replaces the high-water mark source. A nil fn disables it.
func (s *Sampler) WithPeakFunc(fn PeakFunc) *Sampler {
	s.peak = fn
	return s
}

// Run samples h immediately and then every interval until h exits or ctx is done.
//
// After exit one final snapshot is attempted and a vanished process is ignored.
// ErrPermission ends the run with that error; cancellation returns ctx.Err().
// The returned Usage holds what was folded so far in every case.
func (s *Sampler) Run(ctx context.Context, h Handle, interval time.Duration) (Usage, error) {
	interval = sampleInterval(interval)

	var usage Usage
	pid := h.PID()

	if err := s.sample(ctx, pid, &usage); err != nil {
		return usage, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return usage, ctx.Err()
		case <-h.Done():
			if err := s.sample(ctx, pid, &usage); err != nil && ctx.Err() == nil {
				s.logger.Debug().Err(err).Int("pid", pid).Msg("Final snapshot failed")
			}
			s.logger.Trace().
				Int("pid", pid).
				Int("samples", usage.Samples).
				Uint64("peak_rss", usage.PeakRSS).
				Msg("Sampling finished")
			return usage, nil
		case <-ticker.C:
			if !h.IsAlive() {
				continue
			}
			if err := s.sample(ctx, pid, &usage); err != nil {
				return usage, err
			}
		}
	}
}

// sampleInterval raises interval to the supported minimum.
func sampleInterval(interval time.Duration) time.Duration {
	if interval < constants.MinSampleInterval {
		return constants.MinSampleInterval
	}
	return interval
}

// sample reads and folds one snapshot. Only errors that must end the run are returned.
func (s *Sampler) sample(ctx context.Context, pid int, usage *Usage) error {
	snap, err := s.reader.Read(ctx, ProcessTarget(pid))
	switch {
	case err == nil:
		usage.fold(snap)
	case errors.Is(err, ErrProcessGone):
		// Exit raced the read; the monitor closes Done shortly.
		return nil
	case errors.Is(err, ErrPermission):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrUnsupportedMetric):
		usage.Missing = usage.Missing.With(MetricCPU).With(MetricRSS)
	default:
		s.logger.Debug().Err(err).Int("pid", pid).Msg("Snapshot failed")
	}

	if s.peak != nil {
		if peak, err := s.peak(pid); err == nil {
			usage.foldPeak(peak)
		}
	}

	return nil
}
