package initshim

import (
	"errors"
	"fmt"
)

// Common errors returned by initshim operations
var (
	// ErrInvalidUnitName indicates an empty unit name or one containing a path separator
	ErrInvalidUnitName = errors.New("initshim: invalid unit name")

	// ErrNoWatchedPath indicates a path unit without a PathModified= or PathChanged= directive
	ErrNoWatchedPath = errors.New("initshim: path unit has no watched path")

	// ErrPathNotAbsolute indicates a path unit whose watched path is relative
	ErrPathNotAbsolute = errors.New("initshim: watched path is not absolute")

	// ErrNoSupervisor indicates no live process-one could be found via the PID file
	ErrNoSupervisor = errors.New("initshim: supervisor not running")

	// ErrShuttingDown indicates the supervisor is already shutting down
	ErrShuttingDown = errors.New("initshim: shutting down")

	// ErrSpawnerStreams indicates a Spawner was given a stream that is not an *os.File
	ErrSpawnerStreams = errors.New("initshim: spawner requires file streams")
)

// OpError represents an error from an initshim operation
type OpError struct {
	// Op is the verb that failed
	Op Verb
	// Unit is the unit involved in the operation
	Unit UnitName
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("initshim %s %q: %v", e.Op.String(), string(e.Unit), e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// UnitError reports a unit file that could not be found or parsed. It
// carries no verb; callers acting on the unit wrap it in an OpError.
type UnitError struct {
	// Unit is the unit being loaded
	Unit UnitName
	// Err is the underlying error
	Err error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Unit, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
