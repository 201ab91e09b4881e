package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationUnavailable means no backend is configured. Not retried.
	ErrGenerationUnavailable = errors.New("generation backend unavailable: no credentials configured")
	// ErrMalformedResponse means the backend answered with a payload that breaks the shape contract.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrBackend means the call to the backend itself failed.
	ErrBackend = errors.New("generation backend error")
)

// ShapeError points at the first place a response broke the shape contract.
type ShapeError struct {
	Agent   string
	Path    string
	Problem string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s response at %s: %s", ErrMalformedResponse, e.Agent, e.Path, e.Problem)
}

func (e *ShapeError) Unwrap() error { return ErrMalformedResponse }

// BackendError carries the transport or provider failure verbatim.
type BackendError struct {
	Agent string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackend, e.Agent, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }
