package auth

import (
	"context"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// RoleResolver supplies the acting user's current role set.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, claims *Claims) (domain.RoleSet, error)
}

// ClaimsRoleResolver trusts the roles carried in the token.
type ClaimsRoleResolver struct{}

// ResolveRoles implements RoleResolver.
func (ClaimsRoleResolver) ResolveRoles(_ context.Context, claims *Claims) (domain.RoleSet, error) {
	return domain.NewRoleSet(claims.Roles...), nil
}

// StaticRoleResolver overrides token roles for known subjects, falling back to the token.
type StaticRoleResolver map[string][]domain.Role

// ResolveRoles implements RoleResolver.
func (s StaticRoleResolver) ResolveRoles(ctx context.Context, claims *Claims) (domain.RoleSet, error) {
	if roles, ok := s[claims.SubjectID]; ok {
		return domain.NewRoleSet(roles...), nil
	}
	return ClaimsRoleResolver{}.ResolveRoles(ctx, claims)
}
