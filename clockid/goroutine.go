package clockid

import "runtime"

// GoroutineID returns the current goroutine's runtime id.
//
// Grounded on eventloop.getGoroutineID (loop.go): Go deliberately exposes no
// supported goroutine-id API, so the runtime.Stack trick (parse "goroutine
// NNN [...]" off the top of a captured stack) is the established idiom in
// this codebase's lineage for recovering a "current execution context"
// witness without cgo or assembly.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
