//go:build !linux && !windows

package threadloop

// osThreadID is unsupported on this platform.
func osThreadID() int64 {
	return -1
}
