// Package workflow implements the ticket workflow engine: graph validation,
// the nodes/edges document codec, transition evaluation, status
// categorization, snapshot binding and the single-active-workflow rules.
//
// Nothing in this package performs I/O. Callers load definitions, pass them
// in, and persist whatever the engine reports as changed.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors callers match with errors.Is.
var (
	// ErrNoSuchTransition indicates the definition has no edge between the two states.
	ErrNoSuchTransition = errors.New("no such transition")

	// ErrRoleNotAllowed indicates none of the actor's roles may perform the transition.
	ErrRoleNotAllowed = errors.New("role not allowed")

	// ErrConditionUnsatisfied indicates a transition condition was not met.
	ErrConditionUnsatisfied = errors.New("condition unsatisfied")

	// ErrForbidden indicates an operation on the system default workflow that is never allowed.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates the operation conflicts with current state, e.g. deleting a referenced workflow.
	ErrConflict = errors.New("conflict")

	// ErrInvariantViolation indicates the roster would not hold exactly one active workflow.
	// Seeing it is a bug in the activation rules, not a user error.
	ErrInvariantViolation = errors.New("workflow invariant violation")

	// ErrInvalidDefinition indicates a malformed workflow graph or categorization.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrWorkflowNotFound indicates the workflow does not exist in the deployment.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidStatusChange indicates a lifecycle change the workflow's current status does not permit.
	ErrInvalidStatusChange = errors.New("invalid workflow status change")
)

// ValidationError lists every problem found in a definition.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidDefinition, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDefinition
}

// OperationError wraps a lifecycle failure with the workflow it concerns.
type OperationError struct {
	Op         string
	WorkflowID string
	Message    string
	Err        error
}

func (e *OperationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s workflow %s: %s", e.Op, e.WorkflowID, e.Message)
	}
	return fmt.Sprintf("%s workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(op, id string, err error, message string) error {
	return &OperationError{Op: op, WorkflowID: id, Message: message, Err: err}
}
