package featgen

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a feature node cannot be resolved by name.
	ErrNotFound = errors.New("featgen: node not found")

	// ErrAmbiguous is returned when a name resolves to more than one
	// distinct feature node within the searched subtree.
	ErrAmbiguous = errors.New("featgen: ambiguous node name")

	// ErrInvalidDirective is returned when an operator/value pair does not
	// match any production of the constraint directive grammar.
	ErrInvalidDirective = errors.New("featgen: invalid constraint directive")

	// ErrNoScope is returned when the feature model carries no scope.
	ErrNoScope = errors.New("featgen: model has no scope")
)

// ResolutionError represents a failed name lookup inside the feature model.
type ResolutionError struct {
	Name  string // Name that was looked up
	Scope string // Name of the node the search started from
	count int    // Number of distinct matches (0 when not found)
}

// Error returns the error string.
func (e *ResolutionError) Error() string {
	scope := e.Scope
	if scope == "" {
		scope = "<model>"
	}
	if e.count > 1 {
		return fmt.Sprintf("featgen: %q is ambiguous under %s (%d matches)", e.Name, scope, e.count)
	}
	return fmt.Sprintf("featgen: %q not found under %s", e.Name, scope)
}

// Is reports whether the target matches ErrNotFound or ErrAmbiguous.
func (e *ResolutionError) Is(err error) bool {
	if e.count > 1 {
		return err == ErrAmbiguous
	}
	return err == ErrNotFound
}

// Count returns the number of distinct matches.
func (e *ResolutionError) Count() int {
	return e.count
}

// NewNotFoundError returns a ResolutionError for a name with no match.
func NewNotFoundError(name, scope string) *ResolutionError {
	return &ResolutionError{Name: name, Scope: scope}
}

// NewAmbiguousError returns a ResolutionError for a name with several matches.
func NewAmbiguousError(name, scope string, count int) *ResolutionError {
	return &ResolutionError{Name: name, Scope: scope, count: count}
}

// IsResolutionError returns true if the error is a ResolutionError.
func IsResolutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ResolutionError
	return errors.As(err, &e)
}

// IsNotFound returns true if the error reports a missing node.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsAmbiguous returns true if the error reports an ambiguous node name.
func IsAmbiguous(err error) bool {
	return err != nil && errors.Is(err, ErrAmbiguous)
}

// DirectiveError represents a malformed constraint directive.
type DirectiveError struct {
	Operator string // Operator as supplied by the caller
	Value    string // Value as supplied by the caller
	Message  string
}

// Error returns the error string.
func (e *DirectiveError) Error() string {
	return fmt.Sprintf("featgen: invalid directive %q %q: %s", e.Operator, e.Value, e.Message)
}

// Is reports whether the target matches ErrInvalidDirective.
func (e *DirectiveError) Is(err error) bool {
	return err == ErrInvalidDirective
}

// NewDirectiveError returns a new DirectiveError.
func NewDirectiveError(operator, value, message string) *DirectiveError {
	return &DirectiveError{Operator: operator, Value: value, Message: message}
}

// IsDirectiveError returns true if the error is a DirectiveError.
func IsDirectiveError(err error) bool {
	if err == nil {
		return false
	}
	var e *DirectiveError
	return errors.As(err, &e)
}

// SolveError wraps a failure reported by the solving engine.
type SolveError struct {
	Op  string // Operation (e.g., "compile", "next")
	Err error  // Underlying error
}

// Error returns the error string.
func (e *SolveError) Error() string {
	return fmt.Sprintf("featgen: solver %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SolveError) Unwrap() error {
	return e.Err
}

// NewSolveError returns a new SolveError.
func NewSolveError(op string, err error) *SolveError {
	return &SolveError{Op: op, Err: err}
}

// IsSolveError returns true if the error is a SolveError.
func IsSolveError(err error) bool {
	if err == nil {
		return false
	}
	var e *SolveError
	return errors.As(err, &e)
}

// GenerationError wraps the cause of a failed generation call together with
// the phase it failed in.
type GenerationError struct {
	Task  string // Task node name
	Phase string // Phase (e.g., "constrain", "enumerate")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *GenerationError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("featgen: generating %s (%s): %v", e.Task, e.Phase, e.Err)
	}
	return fmt.Sprintf("featgen: generating (%s): %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError returns a new GenerationError.
func NewGenerationError(task, phase string, err error) *GenerationError {
	return &GenerationError{Task: task, Phase: phase, Err: err}
}

// IsGenerationError returns true if the error is a GenerationError.
func IsGenerationError(err error) bool {
	if err == nil {
		return false
	}
	var e *GenerationError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "featgen: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("featgen: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
