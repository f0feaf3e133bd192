package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectID    string
	Roles        domain.RoleSet
	DeploymentID string
}

// Actor converts the principal into the workflow engine's caller.
func (p *Principal) Actor() domain.Actor {
	return domain.Actor{SubjectID: p.SubjectID, Roles: p.Roles, DeploymentID: p.DeploymentID}
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens            *TokenManager
	roles             RoleResolver
	defaultDeployment string
}

// NewAuthMiddleware constructs middleware. Tokens without a deployment claim
// act on defaultDeployment; a nil resolver trusts the token's roles.
func NewAuthMiddleware(tokens *TokenManager, roles RoleResolver, defaultDeployment string) *AuthMiddleware {
	if roles == nil {
		roles = ClaimsRoleResolver{}
	}
	return &AuthMiddleware{tokens: tokens, roles: roles, defaultDeployment: defaultDeployment}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	roles, err := m.roles.ResolveRoles(c.UserContext(), claims)
	if err != nil {
		return apperrors.MapError(err)
	}

	principal := &Principal{
		SubjectID:    claims.SubjectID,
		Roles:        roles,
		DeploymentID: claims.DeploymentID,
	}
	if principal.DeploymentID == "" {
		principal.DeploymentID = m.defaultDeployment
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
