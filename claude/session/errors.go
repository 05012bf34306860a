package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session operations.
var (
	// ErrSpawn indicates the CLI process could not be started.
	ErrSpawn = errors.New("spawn failed")

	// ErrConnection indicates the process exited during startup without
	// producing output.
	ErrConnection = errors.New("connection failed")

	// ErrInvalidState indicates an operation that the current state does not
	// allow, such as sending while a turn is active.
	ErrInvalidState = errors.New("invalid state")

	// ErrDisconnected indicates the process is gone. Writes after exit fail
	// with it instead of blocking.
	ErrDisconnected = errors.New("disconnected")

	// ErrTimeout indicates a wait ran out of time. The session stays usable.
	ErrTimeout = errors.New("timed out")
)

// Error wraps session errors with context.
type Error struct {
	Op     string // "connect", "send", "interrupt", "wait", "read"
	Err    error
	Stderr string // tail of the CLI's stderr, when relevant
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v\nstderr:\n%s", e.Op, e.Err, e.Stderr)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// stateError wraps an engine error for op, naming the state for
// ErrInvalidState.
func stateError(op string, err error, state State) *Error {
	if errors.Is(err, ErrInvalidState) {
		err = fmt.Errorf("%w: session is %s", err, state)
	}
	return &Error{Op: op, Err: err}
}

// IsFatal reports whether err ends the session: spawn, connection and
// disconnection failures.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSpawn) ||
		errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrDisconnected)
}

// IsRecoverable reports whether the session is still usable after err.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrInvalidState)
}
