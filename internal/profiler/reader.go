package profiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// Reader takes resource snapshots.
type Reader interface {
	Read(ctx context.Context, target Target) (Snapshot, error)
}

// ReaderOptions configures a SnapshotReader.
type ReaderOptions struct {
	// IncludeChildren sums CPU and RSS over every descendant of the target process.
	IncludeChildren bool
}

// SnapshotReader reads counters through gopsutil.
type SnapshotReader struct {
	opts ReaderOptions
	now  func() time.Time
}

// NewSnapshotReader creates a gopsutil backed reader.
func NewSnapshotReader(opts ReaderOptions) *SnapshotReader {
	return &SnapshotReader{opts: opts, now: time.Now}
}

// Read returns a snapshot of the target.
// For a process target only CPU and RSS are filled.
func (r *SnapshotReader) Read(ctx context.Context, target Target) (Snapshot, error) {
	if target.System {
		return r.readSystem(ctx)
	}
	return r.readProcess(ctx, target.PID)
}

func (r *SnapshotReader) readProcess(ctx context.Context, pid int32) (Snapshot, error) {
	snap := Snapshot{Timestamp: r.now()}

	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return snap, mapProcessError(err)
	}

	procs := []*process.Process{root}
	if r.opts.IncludeChildren {
		procs = append(procs, descendants(ctx, root)...)
	}

	var cpuOK, rssOK bool
	for i, p := range procs {
		times, err := p.TimesWithContext(ctx)
		if err == nil {
			snap.CPUUser += times.User
			snap.CPUSystem += times.System
			cpuOK = true
		} else if i == 0 {
			if err := fatalRootError(err); err != nil {
				return snap, err
			}
		}

		info, err := p.MemoryInfoWithContext(ctx)
		if err == nil {
			snap.RSS += info.RSS
			rssOK = true
		} else if i == 0 {
			if err := fatalRootError(err); err != nil {
				return snap, err
			}
		}
	}

	if !cpuOK {
		snap.Missing = snap.Missing.With(MetricCPU)
	}
	if !rssOK {
		snap.Missing = snap.Missing.With(MetricRSS)
	}
	if !cpuOK && !rssOK {
		return snap, fmt.Errorf("pid %d: %w", pid, ErrUnsupportedMetric)
	}

	return snap, nil
}

// fatalRootError returns the error that must end a read of the root process, or nil
// when only this metric is unavailable.
func fatalRootError(err error) error {
	mapped := mapProcessError(err)
	if errors.Is(mapped, ErrUnsupportedMetric) {
		return nil
	}
	return mapped
}

// descendants walks the process tree below p. Children exiting mid-walk are skipped.
func descendants(ctx context.Context, p *process.Process) []*process.Process {
	var out []*process.Process
	seen := map[int32]bool{p.Pid: true}

	queue := []*process.Process{p}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		children, err := parent.ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Pid] {
				continue
			}
			seen[c.Pid] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}

	return out
}

func (r *SnapshotReader) readSystem(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Timestamp: r.now()}
	var errs []error

	counters, err := net.IOCountersWithContext(ctx, false)
	if err == nil && len(counters) > 0 {
		for _, c := range counters {
			snap.BytesSent += c.BytesSent
			snap.BytesRecv += c.BytesRecv
		}
	} else {
		snap.Missing = snap.Missing.With(MetricNetwork)
		errs = append(errs, readError("network counters", err))
	}

	times, err := cpu.TimesWithContext(ctx, false)
	if err == nil && len(times) > 0 {
		snap.CPUUser = times[0].User
		snap.CPUSystem = times[0].System
	} else {
		snap.Missing = snap.Missing.With(MetricCPU)
		errs = append(errs, readError("cpu times", err))
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		snap.RSS = vm.Used
	} else {
		snap.Missing = snap.Missing.With(MetricRSS)
		errs = append(errs, readError("virtual memory", err))
	}

	if len(errs) == 3 {
		return snap, fmt.Errorf("%w: %w", ErrUnsupportedMetric, errors.Join(errs...))
	}

	return snap, nil
}

func readError(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: no data", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// mapProcessError maps gopsutil and OS errors onto the package sentinels.
func mapProcessError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, process.ErrorProcessNotRunning),
		errors.Is(err, os.ErrNotExist),
		errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("%w: %w", ErrProcessGone, err)
	case errors.Is(err, process.ErrorNotPermitted),
		errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case strings.Contains(err.Error(), "not implemented"):
		// gopsutil's internal ErrNotImplementedError is not importable.
		return fmt.Errorf("%w: %w", ErrUnsupportedMetric, err)
	default:
		return err
	}
}
