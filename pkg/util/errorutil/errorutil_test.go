package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

func TestToDomainError_Denials(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{
			name:   "role",
			err:    &workflow.DeniedError{Reason: workflow.ReasonRoleNotAllowed, From: "New", To: "Open", AllowedRoles: []domain.Role{domain.RoleAdmin}},
			code:   CodeRoleNotAllowed,
			status: http.StatusForbidden,
		},
		{
			name:   "condition",
			err:    fmt.Errorf("transition: %w", &workflow.DeniedError{Reason: workflow.ReasonConditionUnsatisfied, Missing: []domain.ConditionKind{domain.ConditionCommentRequired}}),
			code:   CodeConditionUnsatisfied,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "no edge",
			err:    &workflow.DeniedError{Reason: workflow.ReasonNoSuchTransition, From: "New", To: "Closed"},
			code:   CodeNoSuchTransition,
			status: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.NotEqual(t, "transition failed", de.Message)
			assert.NotEmpty(t, de.Message)
		})
	}
}

func TestToDomainError_Lifecycle(t *testing.T) {
	forbidden := &workflow.OperationError{Op: "update", WorkflowID: "sd", Message: "the system default workflow cannot be edited", Err: workflow.ErrForbidden}
	de := ToDomainError(forbidden)
	assert.Equal(t, CodeForbidden, de.Code)
	assert.Equal(t, "the system default workflow cannot be edited", de.Message)

	assert.Equal(t, http.StatusConflict, ToDomainError(&workflow.OperationError{Op: "delete", Err: workflow.ErrConflict}).HTTPStatus)
	assert.Equal(t, http.StatusConflict, ToDomainError(repository.ErrStatusConflict).HTTPStatus)

	nf := ToDomainError(&workflow.OperationError{Op: "activate", WorkflowID: "wf-9", Err: workflow.ErrWorkflowNotFound})
	assert.Equal(t, CodeNotFound, nf.Code)
	assert.Equal(t, "wf-9", nf.Details["id"])

	assert.Equal(t, CodeNotFound, ToDomainError(repository.ErrNotFound).Code)

	inv := ToDomainError(fmt.Errorf("%w: 0 active", workflow.ErrInvariantViolation))
	assert.Equal(t, CodeInvariantViolation, inv.Code)
	assert.Equal(t, http.StatusInternalServerError, inv.HTTPStatus)

	val := ToDomainError(&workflow.ValidationError{Problems: []string{"a", "b"}})
	assert.Equal(t, CodeValidationFailed, val.Code)
	assert.Equal(t, []string{"a", "b"}, val.Details["problems"])
}

func TestToDomainError_Passthrough(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	orig := NewConflict("taken", nil)
	assert.Same(t, orig, ToDomainError(fmt.Errorf("wrapped: %w", orig)))

	internal := ToDomainError(errors.New("disk on fire"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, "internal server error", internal.Message)
}
