package observability

import (
	"fmt"
	"os"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
// It must be deferred directly:
//
//	defer observability.RecoverPanic(logger, "config reload")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it and hands the panic
// to callback as an error. The callback only runs when a panic occurred.
//
//	defer observability.RecoverPanicWithCallback(logger, "send invite", func(err error) {
//		failures <- err
//	})
func RecoverPanicWithCallback(logger *Logger, where string, callback func(err error)) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback(MustRecover(r))
		}
	}
}

// MustRecover converts a recovered value to an error, or nil if r is nil.
// The stack trace is not part of the error.
func MustRecover(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

func logPanic(logger *Logger, where string, r interface{}) {
	if logger == nil {
		logger = NewLogger(ErrorLevel, os.Stderr)
	}
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}
