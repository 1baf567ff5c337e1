package repo

import "errors"

// RepositoryError represents a domain error from repository operations.
//
// These are business logic errors (resource not found, permission denied,
// stale ETag, etc.) as opposed to infrastructure errors (disk failure,
// network error). Outer surfaces (REST handlers, CLI) translate ErrorCode to
// surface-specific status codes; the core only decides the kind.
type RepositoryError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the resource id or content path related to the error
	// (if applicable), for debugging and error reporting
	Path string
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a repository error.
type ErrorCode int

const (
	// ErrNotFound indicates the resource or content item doesn't exist.
	// Also used when existence is deliberately hidden: a REVOKED resource
	// reports NotFound (not Forbidden) to callers without ADMINISTRATE so
	// that soft-deleted records don't reveal themselves.
	ErrNotFound ErrorCode = iota

	// ErrForbidden indicates insufficient permission, including per-field
	// policy violations in the patch engine
	ErrForbidden

	// ErrAlreadyExists indicates a duplicate resource identifier or an
	// unforced content overwrite on an occupied path
	ErrAlreadyExists

	// ErrPreconditionRequired indicates a mutation arrived without an ETag
	ErrPreconditionRequired

	// ErrPreconditionFailed indicates the supplied ETag doesn't match the
	// current resource state (lost the optimistic-concurrency race)
	ErrPreconditionFailed

	// ErrBadArgument indicates invalid parameters: malformed path, missing
	// mandatory field, missing content source
	ErrBadArgument

	// ErrUnprocessable indicates a patch that violates a locked-field
	// invariant (the before/after hash check of the patch engine)
	ErrUnprocessable

	// ErrInternal indicates an I/O or digest failure during upload/download
	ErrInternal
)

// NewError creates a RepositoryError with the given code and message.
func NewError(code ErrorCode, message string) *RepositoryError {
	return &RepositoryError{Code: code, Message: message}
}

// NewPathError creates a RepositoryError carrying the offending id or path.
func NewPathError(code ErrorCode, message, path string) *RepositoryError {
	return &RepositoryError{Code: code, Message: message, Path: path}
}

// IsCode reports whether err is (or wraps) a RepositoryError with the given
// code.
func IsCode(err error, code ErrorCode) bool {
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.Code == code
	}
	return false
}
