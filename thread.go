package threadloop

import (
	"strconv"

	"github.com/joeycumines/go-threadloop/internal/goroutineid"
)

// ThreadID identifies a goroutine. The zero value is [InvalidThreadID].
type ThreadID uint64

// InvalidThreadID is the identity of no goroutine, e.g. the bound thread of
// a loop that is not running.
const InvalidThreadID ThreadID = 0

// CurrentThreadID returns the identity of the calling goroutine.
func CurrentThreadID() ThreadID {
	return ThreadID(goroutineid.Get())
}

// String implements fmt.Stringer.
func (x ThreadID) String() string {
	if x == InvalidThreadID {
		return `invalid`
	}
	return strconv.FormatUint(uint64(x), 10)
}
