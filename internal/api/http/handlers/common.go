package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/dto"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/auth"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

func actorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectID == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

// parseBody decodes and validates a JSON body into req.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}
