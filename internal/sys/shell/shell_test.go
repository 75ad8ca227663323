//go:build unix

package shell

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/perfprobe/internal/testutil"
)

func TestHelperProcess(t *testing.T) {
	testutil.RunHelperProcess()
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestArgv(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		command string
		want    []string
		wantErr bool
	}{
		{
			name:    "split",
			command: `python -c "print('hi')"`,
			want:    []string{"python", "-c", "print('hi')"},
		},
		{
			name:    "shell",
			cfg:     Config{UseShell: true},
			command: "echo a | wc -c",
			want:    []string{DefaultShell, "-c", "echo a | wc -c"},
		},
		{
			name:    "custom shell",
			cfg:     Config{UseShell: true, Shell: "/bin/bash"},
			command: "true",
			want:    []string{"/bin/bash", "-c", "true"},
		},
		{name: "empty", command: "   ", wantErr: true},
		{name: "unterminated quote", command: `echo "oops`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Argv(tt.cfg, tt.command)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpawn_ExitCodes(t *testing.T) {
	requireSh(t)

	tests := []struct {
		command string
		want    int
	}{
		{"true", 0},
		{"false", 1},
		{"sh -c 'exit 7'", 7},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			p, err := Spawn(Config{}, tt.command)
			require.NoError(t, err)

			status := p.Wait()
			assert.Equal(t, tt.want, status.Code)
			assert.False(t, status.Signaled)
			assert.NoError(t, status.Err)
			assert.False(t, p.IsAlive())
			assert.False(t, p.ExitedAt().Before(p.StartedAt()))
		})
	}
}

func TestSpawn_UseShell(t *testing.T) {
	requireSh(t)

	var out bytes.Buffer
	p, err := Spawn(Config{UseShell: true, Stdout: &out}, "echo hello && exit 3")
	require.NoError(t, err)

	status := p.Wait()
	assert.Equal(t, 3, status.Code)
	assert.Equal(t, "hello\n", out.String())
}

func TestSpawn_NotFound(t *testing.T) {
	_, err := Spawn(Config{}, "/nonexistent/definitely-not-here --flag")
	require.Error(t, err)

	var se *SpawnError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SpawnNotFound, se.Kind)
	assert.False(t, IsSystem(err))
	assert.Contains(t, err.Error(), "not_found")
}

func TestSpawn_ParseError(t *testing.T) {
	_, err := Spawn(Config{}, `echo 'unterminated`)

	var se *SpawnError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, SpawnParse, se.Kind)
}

func TestSpawn_PermissionDenied(t *testing.T) {
	// A directory is never executable.
	_, err := Spawn(Config{}, t.TempDir())

	var se *SpawnError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, []SpawnErrorKind{SpawnPermission, SpawnExec}, se.Kind)
}

func TestSpawn_Rusage(t *testing.T) {
	const mib = 32

	p, err := Spawn(Config{}, testutil.HelperCommand(t, "alloc", "32", "10ms"))
	require.NoError(t, err)

	status := p.Wait()
	require.Equal(t, 0, status.Code)
	assert.GreaterOrEqual(t, status.MaxRSS, uint64(mib<<20))
}

func TestTerminate_Graceful(t *testing.T) {
	requireSh(t)

	p, err := Spawn(Config{}, "sleep 30")
	require.NoError(t, err)
	require.True(t, p.IsAlive())

	start := time.Now()
	require.NoError(t, p.Terminate(2*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second, "SIGTERM should suffice for sleep")

	status := p.Wait()
	assert.True(t, status.Signaled)
	assert.Equal(t, -1, status.Code)
	assert.Equal(t, "SIGTERM", status.Signal)
	assert.True(t, p.Terminated())
}

func TestTerminate_KillAfterGrace(t *testing.T) {
	requireSh(t)

	p, err := Spawn(Config{UseShell: true}, "trap '' TERM; sleep 30 & wait")
	require.NoError(t, err)

	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, p.Terminate(200*time.Millisecond))

	status := p.Wait()
	assert.True(t, status.Signaled)
	assert.Equal(t, "SIGKILL", status.Signal)
}

func TestTerminate_ProcessGroup(t *testing.T) {
	requireSh(t)
	if runtime.GOOS != "linux" {
		t.Skip("inspects /proc")
	}

	var out syncBuffer
	p, err := Spawn(Config{UseShell: true, Stdout: &out}, "sleep 30 & echo $!; wait")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "\n") },
		2*time.Second, 10*time.Millisecond)
	child, err := strconv.Atoi(strings.TrimSpace(out.String()))
	require.NoError(t, err)

	require.NoError(t, p.Terminate(time.Second))
	p.Wait()

	// The background sleep belongs to the group and must be dead (gone or a zombie).
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", child))
		if err != nil {
			return true
		}
		fields := strings.Fields(string(data[bytes.LastIndexByte(data, ')')+1:]))
		return len(fields) > 0 && (fields[0] == "Z" || fields[0] == "X")
	}, 2*time.Second, 20*time.Millisecond)
}

// syncBuffer is a bytes.Buffer safe for the exec copy goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTerminate_AfterExit(t *testing.T) {
	requireSh(t)

	p, err := Spawn(Config{}, "true")
	require.NoError(t, err)
	p.Wait()

	assert.NoError(t, p.Terminate(time.Second))
}

func TestClassifyStartError(t *testing.T) {
	tests := []struct {
		err  error
		want SpawnErrorKind
	}{
		{&exec.Error{Name: "x", Err: exec.ErrNotFound}, SpawnNotFound},
		{syscall.ENOENT, SpawnNotFound},
		{syscall.EACCES, SpawnPermission},
		{syscall.EPERM, SpawnPermission},
		{syscall.EAGAIN, SpawnSystem},
		{syscall.ENOMEM, SpawnSystem},
		{syscall.EMFILE, SpawnSystem},
		{syscall.ENFILE, SpawnSystem},
		{syscall.ENOEXEC, SpawnExec},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyStartError(tt.err))
		})
	}

	assert.True(t, IsSystem(&SpawnError{Kind: SpawnSystem, Err: syscall.EAGAIN}))
}
