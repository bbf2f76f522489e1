//go:build windows

package threadloop

import (
	"golang.org/x/sys/windows"
)

// osThreadID returns the Win32 thread id of the calling thread, used for
// diagnostics only.
func osThreadID() int64 {
	return int64(windows.GetCurrentThreadId())
}
