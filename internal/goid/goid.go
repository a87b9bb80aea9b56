// Package goid exposes the calling goroutine's ID, backing the
// goroutine-affinity checks in scope, reference, and dispatch.
package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns the calling goroutine's ID by parsing the header of
// its stack trace ("goroutine N [running]:"). The ID is stable for the
// life of the goroutine and never reused while it is alive.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
