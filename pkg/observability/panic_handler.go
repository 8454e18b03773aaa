package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
//
// Call in a defer statement. After logging, the panic is not re-raised,
// so the surrounding goroutine survives. Use only where continuing is safe.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("panic recovered")
	}
}
