package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownResource: a system declared an access to a resource that was
	// never registered. Reported by BuildGraph before anything runs.
	ErrUnknownResource = errors.New("unknown resource reference")

	// ErrCyclicDependency cannot come out of correct grouping; seeing it
	// means the graph builder itself is broken.
	ErrCyclicDependency = errors.New("cyclic dependency (internal error)")

	// ErrInvalidDescriptor: descriptor IDs do not match their positions.
	ErrInvalidDescriptor = errors.New("invalid system descriptor")

	// ErrSystemFailed wraps every failure returned by a system body.
	ErrSystemFailed = errors.New("system execution failed")

	// ErrUnorderedConflict is returned by Verify when two conflicting
	// systems have no path between them.
	ErrUnorderedConflict = errors.New("unordered write conflict")
)

// BuildError is a build-time configuration error.
type BuildError struct {
	Kind     error
	System   string
	Resource ResourceID
	Msg      string
}

func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.System != "" {
		fmt.Fprintf(&b, ": system %q", e.System)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, " resource %q", e.Resource)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *BuildError) Unwrap() error { return e.Kind }

func cycleError(path []string) error {
	return &BuildError{Kind: ErrCyclicDependency, Msg: strings.Join(path, " -> ")}
}

// SystemError records one failed system in a Report.
type SystemError struct {
	System SystemID
	Name   string
	Err    error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system %s failed: %v", e.Name, e.Err)
}

// Is lets errors.Is(err, ErrSystemFailed) match without hiding the cause.
func (e *SystemError) Is(target error) bool { return target == ErrSystemFailed }

func (e *SystemError) Unwrap() error { return e.Err }

// PanicError is the failure recorded when a system body panics.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
