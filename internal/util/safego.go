package util

import (
	"runtime/debug"

	"github.com/descilabs/launchpad/internal/logging"
)

// SafeGo runs fn on a new goroutine with panic recovery. Panics are
// logged with a stack trace instead of crashing the process.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("goroutine panic recovered",
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}

// SafeGoWithName is SafeGo with a descriptive name attached to any
// recovered panic for easier debugging.
func SafeGoWithName(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("goroutine panic recovered",
					"goroutine", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
