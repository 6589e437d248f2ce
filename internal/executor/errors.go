package executor

import (
	"errors"
	"fmt"

	"github.com/hanpama/docexec/internal/document"
)

// Document errors. They are reported before any field executes and produce a
// result without data.
var (
	ErrUnknownFragment     = errors.New("unknown fragment")
	ErrFragmentCycle       = errors.New("fragment cycle")
	ErrResponseKeyConflict = errors.New("response key conflict")
	ErrUnknownField        = errors.New("unknown field")
	ErrUnknownType         = errors.New("unknown type")
	ErrInvalidSelection    = errors.New("invalid selection")
	ErrMaxDepthExceeded    = errors.New("maximum selection depth exceeded")
	ErrOperationNotFound   = document.ErrOperationNotFound
	ErrMissingVariable     = errors.New("missing variable")
	ErrInvalidVariable     = errors.New("invalid variable")
)

// ErrFragmentTypeMismatch is returned by fragment resolution when a fragment's
// type condition does not apply to the runtime type. Field collection treats
// it as a filter and skips the fragment.
var ErrFragmentTypeMismatch = errors.New("fragment type condition does not apply")

// Execution errors.
var (
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrOperationCancelled = errors.New("operation cancelled")

	// errBranchPruned is the cancellation cause of sibling branches whose
	// parent was nulled by a non-null failure. Errors carrying it are dropped.
	errBranchPruned = errors.New("branch pruned")
)

// FieldResolutionError is a failure to produce a value at Path.
type FieldResolutionError struct {
	Path Path
	Err  error
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldResolutionError) Unwrap() error { return e.Err }

// ListExecutionError reports that an element of a list with non-null items
// failed. Index is the lowest failing element.
type ListExecutionError struct {
	Path  Path
	Index int
	Err   error
}

func (e *ListExecutionError) Error() string {
	return fmt.Sprintf("%s: element %d: %v", e.Path, e.Index, e.Err)
}

func (e *ListExecutionError) Unwrap() error { return e.Err }

// Error codes reported in GraphQLError extensions.
const (
	CodeUnknownFragment      = "UNKNOWN_FRAGMENT"
	CodeFragmentCycle        = "FRAGMENT_CYCLE"
	CodeResponseKeyConflict  = "RESPONSE_KEY_CONFLICT"
	CodeValidationFailed     = "GRAPHQL_VALIDATION_FAILED"
	CodeMaxDepthExceeded     = "MAX_DEPTH_EXCEEDED"
	CodeOperationNotFound    = "OPERATION_NOT_FOUND"
	CodeMissingVariable      = "MISSING_VARIABLE"
	CodeInvalidVariable      = "INVALID_VARIABLE"
	CodeFieldResolution      = "FIELD_RESOLUTION_ERROR"
	CodeListExecution        = "LIST_EXECUTION_ERROR"
	CodeOperationTimeout     = "OPERATION_TIMEOUT"
	CodeOperationCancelled   = "OPERATION_CANCELLED"
	CodeInternalServerError  = "INTERNAL_SERVER_ERROR"
	CodeFragmentTypeMismatch = "FRAGMENT_TYPE_MISMATCH"
)

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	var lerr *ListExecutionError
	var ferr *FieldResolutionError
	switch {
	case errors.Is(err, ErrUnknownFragment):
		return CodeUnknownFragment
	case errors.Is(err, ErrFragmentCycle):
		return CodeFragmentCycle
	case errors.Is(err, ErrResponseKeyConflict):
		return CodeResponseKeyConflict
	case errors.Is(err, ErrUnknownField), errors.Is(err, ErrUnknownType), errors.Is(err, ErrInvalidSelection):
		return CodeValidationFailed
	case errors.Is(err, ErrMaxDepthExceeded):
		return CodeMaxDepthExceeded
	case errors.Is(err, ErrOperationNotFound):
		return CodeOperationNotFound
	case errors.Is(err, ErrMissingVariable):
		return CodeMissingVariable
	case errors.Is(err, ErrInvalidVariable):
		return CodeInvalidVariable
	case errors.Is(err, ErrFragmentTypeMismatch):
		return CodeFragmentTypeMismatch
	case errors.As(err, &lerr):
		return CodeListExecution
	case errors.Is(err, ErrOperationTimeout):
		return CodeOperationTimeout
	case errors.Is(err, ErrOperationCancelled):
		return CodeOperationCancelled
	case errors.As(err, &ferr):
		return CodeFieldResolution
	}
	return CodeInternalServerError
}

// errorMessage returns the message of the failure at the origin of err,
// without the path prefixes added while it propagated.
func errorMessage(err error) string {
	var ferr *FieldResolutionError
	if errors.As(err, &ferr) {
		return ferr.Err.Error()
	}
	return err.Error()
}

// errorResult builds the data-less result for a document or variable error.
func errorResult(err error) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{
		Message:    err.Error(),
		Extensions: map[string]any{"code": ErrorCode(err)},
	}}}
}
