/*
Package errkind holds error kinds shared by the pure computation packages.

Malformed arguments are reported as ErrInvalidInput. They are never retried
and callers surface them immediately.
*/
package errkind

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks malformed arguments to a pure function.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInput returns an error wrapping ErrInvalidInput with a formatted detail.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsInvalidInput reports whether err is (or wraps) ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
