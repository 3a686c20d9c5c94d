package plugin

import (
	"errors"
	"fmt"

	"github.com/gravitational/trace"
)

// FatalError marks a Source.Poll error as fatal: the source's poll
// loop stops instead of logging the failure and retrying on its next
// tick. A plugin returns one from Poll to signal that its source
// cannot recover on its own.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("plugin: fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is, or wraps, a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// UnexpectedInputError is returned by a Transform when the buffer it
// received does not match what it expects. It is a bad-input rejection,
// not a fatal error: the buffer is dropped and the pipeline continues.
type UnexpectedInputError struct {
	Reason string
}

func (e *UnexpectedInputError) Error() string {
	return fmt.Sprintf("plugin: unexpected input: %s", e.Reason)
}

// IsUnexpectedInput reports whether err is (or wraps) an
// UnexpectedInputError.
func IsUnexpectedInput(err error) bool {
	var uie *UnexpectedInputError
	return errors.As(err, &uie)
}

// BuildError aggregates failures from a batch of plugin-supplied
// builders (sources, transforms, outputs). Startup treats any non-empty
// BuildError as fatal; at runtime a partial failure is tolerated and the
// BuildError simply reports how many of the batch failed.
type BuildError struct {
	Failed int
	Total  int
	Errs   []error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("plugin: %d/%d builders failed", e.Failed, e.Total)
}

func (e *BuildError) Unwrap() []error { return e.Errs }

// SourceError wraps a Source.Poll failure with the originating element's
// name and a retry/fatal classification: Fatal errors propagate out of
// the source's poll loop; non-fatal ones are logged and the loop
// continues on its next tick.
type SourceError struct {
	Element string
	Err     error
	Fatal   bool
}

// NewSourceError wraps err with trace.Wrap, capturing the call site's
// stack so a fatal source failure can be traced back to where it
// originated rather than just where it was logged. Fatal is derived
// from err via IsFatal, so a plugin classifies its own failures by the
// error type it returns from Poll rather than by a separate argument.
func NewSourceError(element string, err error) *SourceError {
	return &SourceError{Element: element, Err: trace.Wrap(err), Fatal: IsFatal(err)}
}

func (e *SourceError) Error() string {
	kind := "retry"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("plugin: source %s: %s: %v", e.Element, kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ElementError wraps any element (source, transform, output) error with
// its fully-qualified name, so shutdown reporting can locate the
// failure.
type ElementError struct {
	Element string
	Err     error
}

// NewElementError wraps err with trace.Wrap before attaching the
// element name, so DebugReport on the returned error can print the
// original stack alongside which element produced it.
func NewElementError(element string, err error) *ElementError {
	return &ElementError{Element: element, Err: trace.Wrap(err)}
}

func (e *ElementError) Error() string { return fmt.Sprintf("plugin: %s: %v", e.Element, e.Err) }
func (e *ElementError) Unwrap() error { return e.Err }
