package engine

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEngineTimeout means a round-trip exceeded its deadline.
	ErrEngineTimeout = errors.New("engine timeout")
	// ErrEngineTerminated means the engine was closed or exited with the request in flight.
	ErrEngineTerminated = errors.New("engine terminated")
	// ErrModelLoad means the engine could not initialize.
	ErrModelLoad = errors.New("model load failed")
	// ErrNotReady means the engine has not signalled readiness.
	ErrNotReady = errors.New("engine not ready")
)

// EngineError is a failure reported by the engine for one request.
type EngineError struct {
	Engine        string
	CorrelationID string
	Message       string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: request %s failed: %s", e.Engine, e.CorrelationID, e.Message)
}

// ModelLoadError wraps ErrModelLoad with the engine's reason.
type ModelLoadError struct {
	Engine string
	Reason string
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("engine %s: %v: %s", e.Engine, ErrModelLoad, e.Reason)
}

func (e *ModelLoadError) Unwrap() error { return ErrModelLoad }

// Recoverable reports whether err is an engine failure another engine
// could make up for. Caller cancellation is not recoverable.
func Recoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ee *EngineError
	return errors.As(err, &ee) ||
		errors.Is(err, ErrEngineTimeout) ||
		errors.Is(err, ErrEngineTerminated) ||
		errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrModelLoad) ||
		errors.Is(err, context.DeadlineExceeded)
}
