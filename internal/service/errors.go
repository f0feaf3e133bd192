package service

import (
	"net/http"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

var errTicketNotFound = &apperrors.DomainError{
	Code:       apperrors.CodeNotFound,
	Message:    "ticket not found",
	HTTPStatus: http.StatusNotFound,
	Err:        repository.ErrNotFound,
}
