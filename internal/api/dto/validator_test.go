package dto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(&TransitionRequest{Attachments: -1})
	require.Error(t, err)

	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, apperrors.CodeValidationFailed, de.Code)
	assert.Equal(t, "required", de.Details["target"])
	assert.Equal(t, "gte", de.Details["attachments"])
}

func TestValidateWorkflowRequest(t *testing.T) {
	err := Validate(&WorkflowRequest{Name: "A", Document: []byte(`{}`), Status: "ARCHIVED"})
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "oneof", de.Details["status"])

	assert.NoError(t, Validate(&WorkflowRequest{Name: "A", Document: []byte(`{}`)}))
	assert.NoError(t, Validate(&EvaluateTransitionRequest{To: "Open"}))
	assert.Error(t, Validate(&EvaluateTransitionRequest{To: "Open", Roles: []domain.Role{"ROOT"}}))
}
