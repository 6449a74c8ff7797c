package tools

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is returned by Registry.Lookup when no tool carries the
// requested name. The tool set is fixed at startup, so seeing this at runtime
// means the caller built a name the registry never offered.
var ErrUnknownTool = errors.New("unknown tool")

// ExpressionError reports that a calculator input could not be turned into a
// computation. The router feeds it back to the model, which usually retries
// with a cleaner expression or falls back to the reasoning tool.
type ExpressionError struct {
	Input string
	Err   error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return fmt.Sprintf("could not evaluate %q: %v", e.Input, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExpressionError) Unwrap() error { return e.Err }

// ExternalServiceError reports a failure of a collaborator outside this
// process: the language model, the encyclopedia, or the network in between.
type ExternalServiceError struct {
	Service string
	Err     error
}

// Error implements the error interface.
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExternalServiceError) Unwrap() error { return e.Err }
