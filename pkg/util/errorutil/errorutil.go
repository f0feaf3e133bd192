package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// Error codes returned to API clients.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeConflict             = "CONFLICT"
	CodeNoSuchTransition     = "NO_SUCH_TRANSITION"
	CodeRoleNotAllowed       = "ROLE_NOT_ALLOWED"
	CodeConditionUnsatisfied = "CONDITION_UNSATISFIED"
	CodeInvariantViolation   = "INVARIANT_VIOLATION"
	CodeInternal             = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts engine, storage and generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var denied *workflow.DeniedError
	if errors.As(err, &denied) {
		return deniedError(denied)
	}
	var invalid *workflow.ValidationError
	if errors.As(err, &invalid) {
		return NewDomainError(CodeValidationFailed, "invalid workflow definition", http.StatusBadRequest,
			map[string]any{"problems": invalid.Problems})
	}
	var opErr *workflow.OperationError
	message := err.Error()
	if errors.As(err, &opErr) && opErr.Message != "" {
		message = opErr.Message
	}

	switch {
	case errors.Is(err, workflow.ErrInvariantViolation):
		return &DomainError{
			Code:       CodeInvariantViolation,
			Message:    "workflow invariant violated",
			HTTPStatus: http.StatusInternalServerError,
			Err:        err,
		}
	case errors.Is(err, workflow.ErrForbidden):
		return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
	case errors.Is(err, workflow.ErrConflict), errors.Is(err, repository.ErrStatusConflict), errors.Is(err, repository.ErrConcurrentUpdate):
		return NewDomainError(CodeConflict, message, http.StatusConflict, nil)
	case errors.Is(err, workflow.ErrInvalidStatusChange), errors.Is(err, workflow.ErrInvalidDefinition):
		return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, nil)
	case errors.Is(err, workflow.ErrWorkflowNotFound):
		return notFound("workflow", opErr)
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, pgx.ErrNoRows):
		return notFound("resource", nil)
	}

	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

func deniedError(denied *workflow.DeniedError) *DomainError {
	details := map[string]any{"from": denied.From, "to": denied.To}
	status := http.StatusUnprocessableEntity
	code := CodeNoSuchTransition
	switch denied.Reason {
	case workflow.ReasonRoleNotAllowed:
		status, code = http.StatusForbidden, CodeRoleNotAllowed
		details["allowedRoles"] = denied.AllowedRoles
	case workflow.ReasonConditionUnsatisfied:
		code = CodeConditionUnsatisfied
		missing := make([]string, len(denied.Missing))
		for i, c := range denied.Missing {
			missing[i] = string(c)
		}
		details["missing"] = missing
	}
	return NewDomainError(code, denied.Error(), status, details)
}

func notFound(resource string, opErr *workflow.OperationError) *DomainError {
	var details map[string]any
	if opErr != nil && strings.TrimSpace(opErr.WorkflowID) != "" {
		details = map[string]any{"id": opErr.WorkflowID}
	}
	de, _ := NewNotFound(resource, details).(*DomainError)
	return de
}
