//go:build unix

package shell

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"

	"golang.org/x/sys/unix"
)

// SpawnErrorKind classifies why a command could not be started.
type SpawnErrorKind string

const (
	// SpawnParse means the command line could not be split into argv.
	SpawnParse SpawnErrorKind = "parse"
	// SpawnNotFound means the executable does not exist.
	SpawnNotFound SpawnErrorKind = "not_found"
	// SpawnPermission means the executable exists but may not be run.
	SpawnPermission SpawnErrorKind = "permission"
	// SpawnExec means exec rejected the file (bad format, bad working directory).
	SpawnExec SpawnErrorKind = "exec"
	// SpawnSystem means the system cannot create processes right now.
	SpawnSystem SpawnErrorKind = "system"
)

// SpawnError is returned by Spawn.
type SpawnError struct {
	Command string
	Kind    SpawnErrorKind
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q (%s): %v", e.Command, e.Kind, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsSystem reports whether err is a SpawnError caused by process resource exhaustion.
func IsSystem(err error) bool {
	var se *SpawnError
	return errors.As(err, &se) && se.Kind == SpawnSystem
}

func classifyStartError(err error) SpawnErrorKind {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return SpawnNotFound
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ENOMEM),
		errors.Is(err, unix.ENFILE), errors.Is(err, unix.EMFILE):
		return SpawnSystem
	case errors.Is(err, fs.ErrPermission):
		return SpawnPermission
	default:
		return SpawnExec
	}
}
