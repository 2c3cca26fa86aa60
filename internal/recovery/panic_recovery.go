package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

var Logger = slog.Default()

// OnPanic, when set, is notified after a panic has been logged.
var OnPanic func(name string, err interface{}, stack string)

// WithRecovery runs fn in a new goroutine; a panic is logged instead of
// taking the process down.
func WithRecovery(fn func(), name string) {
	go WithRecoveryNamed(name, fn)
}

// WithRecoveryNamed runs fn on the current goroutine and swallows a panic.
// It reports whether fn completed without panicking.
func WithRecoveryNamed(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			Logger.Error("goroutine_panic_recovered",
				slog.String("worker_name", name),
				slog.String("error", fmt.Sprintf("%v", r)),
				slog.String("stack", stack),
			)
			if OnPanic != nil {
				OnPanic(name, r, stack)
			}
			ok = false
		}
	}()
	fn()
	return true
}
