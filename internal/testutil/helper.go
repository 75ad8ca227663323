package testutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// HelperEnv marks a test binary re-executed as a child workload.
const HelperEnv = "PERFPROBE_WANT_HELPER_PROCESS"

// HelperCommand returns a command line that re-executes the current test binary
// as a workload. The calling package must define a TestHelperProcess test that
// calls RunHelperProcess.
//
// Supported actions:
//
//	alloc <MiB> [hold]   touch MiB of memory and hold it (default 200ms)
//	sleep <duration>     sleep
//	spin <duration>      burn CPU
//	exit <code>          exit with code
func HelperCommand(t *testing.T, action ...string) string {
	t.Helper()
	t.Setenv(HelperEnv, "1")

	parts := []string{os.Args[0], "-test.run=^TestHelperProcess$", "--"}
	parts = append(parts, action...)
	return strings.Join(parts, " ")
}

// RunHelperProcess executes the action encoded after "--" and exits.
// It returns immediately when the binary is not running as a helper.
func RunHelperProcess() {
	if os.Getenv(HelperEnv) != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "helper: no action")
		os.Exit(2)
	}

	switch args[0] {
	case "alloc":
		mib, _ := strconv.Atoi(arg(args, 1, "16"))
		hold, _ := time.ParseDuration(arg(args, 2, "200ms"))
		buf := make([]byte, mib<<20)
		for i := 0; i < len(buf); i += 4096 {
			buf[i] = byte(i)
		}
		time.Sleep(hold)
		// Keep buf reachable until after the hold.
		if buf[0] == 1 {
			fmt.Println()
		}
		os.Exit(0)
	case "sleep":
		d, _ := time.ParseDuration(arg(args, 1, "1s"))
		time.Sleep(d)
		os.Exit(0)
	case "spin":
		d, _ := time.ParseDuration(arg(args, 1, "200ms"))
		deadline := time.Now().Add(d)
		x := 0
		for time.Now().Before(deadline) {
			x++
		}
		_ = x
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(arg(args, 1, "0"))
		os.Exit(code)
	default:
		fmt.Fprintf(os.Stderr, "helper: unknown action %q\n", args[0])
		os.Exit(2)
	}
}

func arg(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}
