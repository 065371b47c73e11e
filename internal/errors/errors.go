// Package errors defines stable error codes for every failure mode of the
// clustering engine.
package errors

import "fmt"

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// EmptyGraph indicates the input contained no entities (fatal)
	EmptyGraph ErrorCode = "EMPTY_GRAPH"
	// DanglingEdge indicates an edge referenced an unknown entity (recoverable)
	DanglingEdge ErrorCode = "DANGLING_EDGE"
	// NonConvergence indicates an algorithm exhausted its pass budget (recoverable)
	NonConvergence ErrorCode = "NON_CONVERGENCE"
	// ConstraintViolation indicates a cluster violates size constraints (advisory)
	ConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"
	// BudgetInfeasible indicates a context pack budget could not be met (recoverable)
	BudgetInfeasible ErrorCode = "BUDGET_INFEASIBLE"
	// Cancelled indicates cooperative cancellation was requested (recoverable)
	Cancelled ErrorCode = "CANCELLED"
	// StorageError indicates the graph store failed (fatal for the current build)
	StorageError ErrorCode = "STORAGE_ERROR"
	// InternalError indicates a programming invariant was violated
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// ClusterError is a typed engine error with a stable code and optional cause
type ClusterError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a ClusterError with the given code and message
func New(code ErrorCode, message string) *ClusterError {
	return &ClusterError{Code: code, Message: message}
}

// Wrap creates a ClusterError wrapping an underlying cause
func Wrap(code ErrorCode, message string, cause error) *ClusterError {
	return &ClusterError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *ClusterError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ClusterError) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details to the error
func (e *ClusterError) WithDetails(details interface{}) *ClusterError {
	e.Details = details
	return e
}

// IsFatal reports whether the error should abort the current build. Only
// missing input, storage failures, and invariant violations abort; everything
// else degrades into warnings or flagged partial results.
func (e *ClusterError) IsFatal() bool {
	switch e.Code {
	case EmptyGraph, StorageError, InternalError:
		return true
	default:
		return false
	}
}
