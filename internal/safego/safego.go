// Package safego launches background goroutines that log panics instead of
// crashing the server.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine under the given task name. A panic inside fn
// is recovered and logged with its stack; the goroutine then exits.
func Go(task string, fn func()) {
	go Run(task, fn)
}

// Run calls fn on the current goroutine with the same recovery as Go and
// reports whether fn returned normally.
func Run(task string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background task",
				"task", task,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	fn()
	return true
}
