package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the generation pipeline.
var (
	ErrEngineNotFound = errors.New("engine not found")
	ErrCancelled      = errors.New("generation cancelled")
)

// ValidationError reports a request that failed a precondition before any
// engine process was spawned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid generation request: " + e.Reason
}

// EngineFailureKind distinguishes how an engine failure was detected.
type EngineFailureKind int

const (
	// FailureReported means the engine completed and explicitly reported
	// failure through its JSON result.
	FailureReported EngineFailureKind = iota
	// FailureSilent means the engine exited non-zero without usable
	// structured output.
	FailureSilent
)

// EngineError reports a generation the engine process did not complete
// successfully. Message is safe to surface to users: it is either the
// engine's own error field or its diagnostic output with noise removed.
type EngineError struct {
	Kind    EngineFailureKind
	Message string
}

func (e *EngineError) Error() string {
	return e.Message
}

// TransportError reports that the engine process could not be spawned or
// monitored at all. Not retryable without operator intervention.
type TransportError struct {
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("engine process %q: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
