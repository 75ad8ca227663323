//go:build unix

// Package shell spawns profiled commands as child processes.
// It handles the lifecycle of a child including process group management,
// exit monitoring, resource usage collection and tree termination.
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/shlex"
	"golang.org/x/sys/unix"
)

// DefaultShell is used when Config.UseShell is set and Config.Shell is empty.
const DefaultShell = "/bin/sh"

// Config configures how a command is spawned.
type Config struct {
	// UseShell runs the command through Shell -c instead of splitting it into argv.
	UseShell bool
	Shell    string
	Dir      string
	// Env is the child environment. Nil inherits the parent environment.
	Env []string
	// Stdout and Stderr receive the child output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	// Code is the exit code, or -1 when the process was killed by a signal or never reported one.
	Code     int
	Signaled bool
	Signal   string

	UserTime   time.Duration
	SystemTime time.Duration
	// MaxRSS is the peak resident set size in bytes as reported by wait4.
	MaxRSS uint64

	// Err is set when waiting failed for a reason other than a non-zero exit.
	Err error
}

// Process is a running (or finished) child process.
type Process struct {
	command   string
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	done      chan struct{}

	mu         sync.Mutex
	exitedAt   time.Time
	status     ExitStatus
	terminated bool
}

// Argv returns the argument vector a command line is executed with.
func Argv(cfg Config, command string) ([]string, error) {
	if cfg.UseShell {
		sh := cfg.Shell
		if sh == "" {
			sh = DefaultShell
		}
		return []string{sh, "-c", command}, nil
	}

	argv, err := shlex.Split(command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return argv, nil
}

// Spawn starts command as a child in its own process group.
// Failures are returned as *SpawnError.
func Spawn(cfg Config, command string) (*Process, error) {
	argv, err := Argv(cfg, command)
	if err != nil {
		return nil, &SpawnError{Command: command, Kind: SpawnParse, Err: err}
	}

	//nolint:gosec // G204: Running user-supplied commands is the purpose of this package.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.Env
	cmd.Stdout = cfg.Stdout
	cmd.Stderr = cfg.Stderr
	// Descendants holding a copied output pipe must not delay the exit observation.
	cmd.WaitDelay = outputWaitDelay
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // Child leads a new process group.
	}

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Kind: classifyStartError(err), Err: err}
	}

	p := &Process{
		command:   command,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: startedAt,
		done:      make(chan struct{}),
	}

	go p.monitorProcess()

	return p, nil
}

// PID returns the child process id, which is also its process group id.
func (p *Process) PID() int {
	return p.pid
}

// Command returns the command line the process was spawned from.
func (p *Process) Command() string {
	return p.command
}

// StartedAt returns the time immediately before the child was started.
func (p *Process) StartedAt() time.Time {
	return p.startedAt
}

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsAlive reports whether the child has not yet been reaped.
func (p *Process) IsAlive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits and returns its exit status.
func (p *Process) Wait() ExitStatus {
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// ExitedAt returns the time the monitor observed the exit. Zero while alive.
func (p *Process) ExitedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitedAt
}

// Terminated reports whether Terminate was called.
func (p *Process) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Terminate stops the whole process group: SIGTERM first, SIGKILL once grace expires.
// It returns after the leader has been reaped or an error if it could not be.
func (p *Process) Terminate(grace time.Duration) error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()

	if !p.IsAlive() {
		// Leader is gone; kill any descendants left in the group.
		_ = p.signalGroup(unix.SIGKILL)
		return nil
	}

	// A failed SIGTERM escalates to SIGKILL without waiting for the grace period.
	termErr := p.signalGroup(unix.SIGTERM)
	if termErr == nil {
		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-p.done:
			_ = p.signalGroup(unix.SIGKILL)
			return nil
		case <-timer.C:
		}
	} else {
		termErr = fmt.Errorf("terminate pid %d: %w", p.pid, termErr)
	}

	if err := p.signalGroup(unix.SIGKILL); err != nil {
		return errors.Join(termErr, fmt.Errorf("kill pid %d: %w", p.pid, err))
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(reapTimeout):
		return fmt.Errorf("pid %d not reaped %s after SIGKILL", p.pid, reapTimeout)
	}
}

// outputWaitDelay bounds how long Wait drains output after the leader exits.
const outputWaitDelay = time.Second

// reapTimeout bounds the wait for the leader after SIGKILL.
const reapTimeout = 5 * time.Second

// signalGroup sends sig to the child's process group, falling back to the leader alone.
// A group that no longer exists is not an error.
func (p *Process) signalGroup(sig unix.Signal) error {
	err := unix.Kill(-p.pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}

	if !p.IsAlive() {
		return nil
	}
	if perr := p.cmd.Process.Signal(sig); perr != nil && !errors.Is(perr, os.ErrProcessDone) {
		return perr
	}
	return nil
}

// monitorProcess waits for the child and records its exit status.
func (p *Process) monitorProcess() {
	err := p.cmd.Wait()
	exitedAt := time.Now()

	status := statusFromState(p.cmd.ProcessState, err)

	p.mu.Lock()
	p.exitedAt = exitedAt
	p.status = status
	p.mu.Unlock()

	close(p.done)
}

func statusFromState(state *os.ProcessState, waitErr error) ExitStatus {
	status := ExitStatus{Code: -1}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		status.Err = waitErr
	}

	if state == nil {
		return status
	}

	status.Code = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Code = -1
		status.Signaled = true
		status.Signal = unix.SignalName(ws.Signal())
		if status.Signal == "" {
			status.Signal = ws.Signal().String()
		}
	}

	status.UserTime = state.UserTime()
	status.SystemTime = state.SystemTime()
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok && ru != nil {
		status.MaxRSS = maxRSSBytes(ru)
	}

	return status
}
