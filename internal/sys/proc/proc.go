// Package proc reads process and kernel information from the Linux /proc filesystem.
// On other platforms the readers return ErrUnavailable.
package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrUnavailable is returned when /proc or the requested field does not exist.
var ErrUnavailable = errors.New("proc: information unavailable")

// Root is the mount point of the proc filesystem.
var Root = "/proc"

// ReadPeakRSS returns the peak resident set size in bytes (VmHWM) of a live process.
// The value is lost once the process has been reaped.
func ReadPeakRSS(pid int) (uint64, error) {
	return readStatusField(pid, "VmHWM")
}

func readStatusField(pid int, key string) (uint64, error) {
	//nolint:gosec // G304: Path is from /proc filesystem for process information.
	f, err := os.Open(fmt.Sprintf("%s/%d/status", Root, pid))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrUnavailable
		}
		return 0, err
	}
	defer f.Close() // nolint:errcheck

	return parseStatusKB(f, key)
}

// parseStatusKB finds "key: <n> kB" in a /proc/<pid>/status stream and returns n in bytes.
func parseStatusKB(r io.Reader, key string) (uint64, error) {
	prefix := key + ":"
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(line, prefix))
		if len(fields) == 0 {
			return 0, fmt.Errorf("malformed %s line: %q", key, line)
		}

		n, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}

		if len(fields) > 1 && strings.EqualFold(fields[1], "kB") {
			n *= 1024
		}
		return n, nil
	}

	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, ErrUnavailable
}

// GetKernelVersion reads the kernel version from /proc/version.
func GetKernelVersion() string {
	data, err := os.ReadFile(Root + "/version")
	if err != nil {
		return "unknown"
	}

	return parseKernelVersion(string(data))
}

// parseKernelVersion extracts "5.15.0-xxx" from "Linux version 5.15.0-xxx ...".
func parseKernelVersion(version string) string {
	if idx := strings.Index(version, "Linux version "); idx >= 0 {
		version = version[idx+14:]
		if idx := strings.Index(version, " "); idx >= 0 {
			version = version[:idx]
		}
		return version
	}

	return "unknown"
}
