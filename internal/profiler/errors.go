package profiler

import "errors"

var (
	// ErrProcessGone is returned when the target process exited before or during a read.
	ErrProcessGone = errors.New("process no longer exists")

	// ErrPermission is returned when the OS denies access to the target's counters.
	ErrPermission = errors.New("permission denied reading process counters")

	// ErrUnsupportedMetric is returned when no metric could be read on this platform.
	ErrUnsupportedMetric = errors.New("metric not supported on this platform")

	// ErrTimeout marks a job that exceeded its execution timeout.
	ErrTimeout = errors.New("job exceeded timeout")

	// ErrSpawnUnavailable is returned by RunAll when the system cannot create processes at all.
	ErrSpawnUnavailable = errors.New("cannot spawn processes")
)
