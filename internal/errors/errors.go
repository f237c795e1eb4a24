package errors

import (
	"fmt"
)

// Kind categorizes an error for propagation and status-code mapping.
type Kind int

const (
	// KindNotFound - the requested node does not exist in the graph
	KindNotFound Kind = iota
	// KindStoreUnavailable - the persistence layer is unreachable
	KindStoreUnavailable
	// KindEmbeddingProvider - embedding recomputation failed
	KindEmbeddingProvider
	// KindExternalSearch - the external search collaborator failed
	KindExternalSearch
	// KindValidation - invalid client input
	KindValidation
	// KindInternal - unexpected internal state
	KindInternal
)

// Error is a structured error carrying a kind, a message, an optional
// cause, and free-form context for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind so callers can test with errors.Is against a
// kind sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithContext attaches a key/value pair for structured logging.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and message. Returns nil for a
// nil cause so call sites can wrap unconditionally.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Convenience constructors for the domain taxonomy.

// NotFound reports an unknown node id.
func NotFound(nodeID string) *Error {
	return Newf(KindNotFound, "node %q not found in graph", nodeID).WithContext("node_id", nodeID)
}

// StoreUnavailable wraps a persistence failure.
func StoreUnavailable(err error) *Error {
	return Wrap(err, KindStoreUnavailable, "graph store unavailable")
}

// EmbeddingProvider wraps an embedding recomputation failure.
func EmbeddingProvider(err error) *Error {
	return Wrap(err, KindEmbeddingProvider, "embedding provider failed")
}

// ExternalSearch wraps an external search failure.
func ExternalSearch(err error) *Error {
	return Wrap(err, KindExternalSearch, "external search failed")
}

// Validation reports invalid client input.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// GetKind returns the kind of an error, defaulting to KindInternal for
// foreign errors.
func GetKind(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
