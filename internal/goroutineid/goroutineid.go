// Package goroutineid exposes the runtime's identifier for the calling
// goroutine.
//
// The runtime deliberately does not export this value. It is recovered by
// parsing the header line of [runtime.Stack], which has the stable form
// "goroutine 123 [running]:". Identifiers are never zero and are not reused
// while the goroutine is alive.
package goroutineid

import (
	"runtime"
)

const prefix = "goroutine "

// Get returns the current goroutine's ID, or 0 if it cannot be determined.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) uint64 {
	if len(b) <= len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for i := len(prefix); i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		id = id*10 + uint64(b[i]-'0')
	}
	return id
}
