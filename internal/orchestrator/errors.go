package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAllEnginesFailed is matched by AllEnginesFailedError.
	ErrAllEnginesFailed = errors.New("all engines failed")
	// ErrUnknownEngine means an engine name was never registered as available.
	ErrUnknownEngine = errors.New("unknown engine")
	// ErrNoEngines means the orchestrator was built without engines.
	ErrNoEngines = errors.New("no engines configured")
)

// AllEnginesFailedError is returned when no engine could answer a query.
type AllEnginesFailedError struct {
	// Attempted lists engines in the order they were tried.
	Attempted []string
	// LastErr is the failure of the last engine tried.
	LastErr error
}

func (e *AllEnginesFailedError) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("%v: no engine available: %v", ErrAllEnginesFailed, e.LastErr)
	}
	return fmt.Sprintf("%v (tried %s): %v", ErrAllEnginesFailed, strings.Join(e.Attempted, ", "), e.LastErr)
}

// Is makes errors.Is(err, ErrAllEnginesFailed) true.
func (e *AllEnginesFailedError) Is(target error) bool { return target == ErrAllEnginesFailed }

func (e *AllEnginesFailedError) Unwrap() error { return e.LastErr }
