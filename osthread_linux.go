//go:build linux

package threadloop

import (
	"golang.org/x/sys/unix"
)

// osThreadID returns the kernel thread id of the calling thread, used for
// diagnostics only. It is only meaningful when the goroutine is locked to its
// OS thread.
func osThreadID() int64 {
	return int64(unix.Gettid())
}
