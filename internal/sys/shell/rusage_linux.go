package shell

import "syscall"

// maxRSSBytes converts ru_maxrss, reported in kilobytes on Linux.
func maxRSSBytes(ru *syscall.Rusage) uint64 {
	if ru.Maxrss <= 0 {
		return 0
	}
	return uint64(ru.Maxrss) * 1024
}
