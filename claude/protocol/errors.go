package protocol

import (
	"errors"
	"fmt"
)

// ErrDecode indicates a line that is not a JSON object.
var ErrDecode = errors.New("undecodable line")

// DecodeError carries the offending line. It matches ErrDecode with
// errors.Is.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v (line %q)", ErrDecode, e.Err, truncateLine(e.Line, 120))
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// missingField reports an absent required field of a known type.
type missingField string

func (f missingField) Error() string {
	return "missing required field " + string(f)
}

func truncateLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
