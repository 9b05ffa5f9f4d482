// Package errs implements the error taxonomy of the comparer: precondition
// failures, corrupt/malformed packages, single-part parse failures, and
// missing referenced resources. The last two are designed to be logged and
// swallowed by the pipeline rather than surfaced, per the "log and degrade"
// policy; PreconditionError and PackageError always propagate to the caller.
package errs

import "fmt"

// PreconditionError reports a null/empty input or an invalid call contract.
// These are always surfaced to the caller.
type PreconditionError struct {
	Op      string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed in %s: %s", e.Op, e.Message)
}

// NewPrecondition builds a PreconditionError.
func NewPrecondition(op, message string) *PreconditionError {
	return &PreconditionError{Op: op, Message: message}
}

// PackageError reports a corrupt ZIP or a missing required part (e.g. no
// workbook or presentation part). Always surfaced to the caller.
type PackageError struct {
	Op   string
	Part string
	Err  error
}

func (e *PackageError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("package error in %s (part %s): %v", e.Op, e.Part, e.Err)
	}
	return fmt.Sprintf("package error in %s: %v", e.Op, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }

// NewPackage builds a PackageError.
func NewPackage(op, part string, err error) *PackageError {
	return &PackageError{Op: op, Part: part, Err: err}
}

// PartParseError reports that a specific part failed to parse. Policy: the
// pipeline logs it via the caller's LogFunc and degrades (skips that slide,
// drops that hash) rather than aborting.
type PartParseError struct {
	Op   string
	Part string
	Err  error
}

func (e *PartParseError) Error() string {
	return fmt.Sprintf("failed to parse part %s in %s: %v", e.Part, e.Op, e.Err)
}

func (e *PartParseError) Unwrap() error { return e.Err }

// NewPartParse builds a PartParseError.
func NewPartParse(op, part string, err error) *PartParseError {
	return &PartParseError{Op: op, Part: part, Err: err}
}

// ResourceError reports that a referenced image/chart part is missing.
// Policy: the derived hash becomes nil and matching falls through to less
// specific signals.
type ResourceError struct {
	Op       string
	Part     string
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("missing resource %s referenced from %s in %s: %v", e.Resource, e.Part, e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// NewResource builds a ResourceError.
func NewResource(op, part, resource string, err error) *ResourceError {
	return &ResourceError{Op: op, Part: part, Resource: resource, Err: err}
}

// LogFunc is the per-call injected logging hook settings carry instead of
// any global mutable logger. It receives the recoverable error that was
// swallowed so callers can audit degraded signatures without the pipeline
// aborting.
type LogFunc func(err error)
