package profiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/perfprobe/internal/testutil"
)

func TestSnapshotReader_Self(t *testing.T) {
	r := NewSnapshotReader(ReaderOptions{})

	snap, err := r.Read(context.Background(), ProcessTarget(os.Getpid()))
	require.NoError(t, err)

	assert.False(t, snap.Timestamp.IsZero())
	assert.False(t, snap.Missing.Has(MetricRSS))
	assert.Greater(t, snap.RSS, uint64(0))
	assert.GreaterOrEqual(t, snap.CPUUser, 0.0)
}

func TestSnapshotReader_GoneProcess(t *testing.T) {
	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperProcess$", "--", "exit", "0")
	cmd.Env = append(os.Environ(), testutil.HelperEnv+"=1")
	require.NoError(t, cmd.Run())

	r := NewSnapshotReader(ReaderOptions{})
	_, err := r.Read(context.Background(), ProcessTarget(cmd.Process.Pid))

	assert.True(t, errors.Is(err, ErrProcessGone), "got %v", err)
}

func TestSnapshotReader_IncludeChildren(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("child RSS accounting tested on linux")
	}

	// The parent sleeps while its child holds 64 MiB.
	cmd := exec.Command("sh", "-c", fmt.Sprintf("%s -test.run=^TestHelperProcess$ -- alloc 64 2s & wait", os.Args[0]))
	cmd.Env = append(os.Environ(), testutil.HelperEnv+"=1")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	pid := cmd.Process.Pid
	withChildren := NewSnapshotReader(ReaderOptions{IncludeChildren: true})
	alone := NewSnapshotReader(ReaderOptions{})

	require.Eventually(t, func() bool {
		snap, err := withChildren.Read(context.Background(), ProcessTarget(pid))
		return err == nil && snap.RSS >= 64<<20
	}, 5*time.Second, 50*time.Millisecond)

	snap, err := alone.Read(context.Background(), ProcessTarget(pid))
	require.NoError(t, err)
	assert.Less(t, snap.RSS, uint64(64<<20))
}

func TestSnapshotReader_System(t *testing.T) {
	r := NewSnapshotReader(ReaderOptions{})

	first, err := r.Read(context.Background(), SystemTarget())
	require.NoError(t, err)
	second, err := r.Read(context.Background(), SystemTarget())
	require.NoError(t, err)

	if !first.Missing.Has(MetricNetwork) && !second.Missing.Has(MetricNetwork) {
		assert.GreaterOrEqual(t, second.BytesSent, first.BytesSent)
		assert.GreaterOrEqual(t, second.BytesRecv, first.BytesRecv)
	}
	if !second.Missing.Has(MetricRSS) {
		assert.Greater(t, second.RSS, uint64(0))
	}
}

func TestMapProcessError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not running", process.ErrorProcessNotRunning, ErrProcessGone},
		{"no such file", fmt.Errorf("open /proc/1/stat: %w", os.ErrNotExist), ErrProcessGone},
		{"not permitted", process.ErrorNotPermitted, ErrPermission},
		{"permission", fmt.Errorf("open: %w", os.ErrPermission), ErrPermission},
		{"not implemented", errors.New("not implemented yet"), ErrUnsupportedMetric},
		{"cancelled", context.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapProcessError(tt.err)
			assert.True(t, errors.Is(got, tt.want), "got %v", got)
			assert.True(t, errors.Is(got, tt.err), "original error must stay in the chain")
		})
	}

	assert.NoError(t, mapProcessError(nil))

	other := errors.New("boom")
	assert.Equal(t, other, mapProcessError(other))
}
