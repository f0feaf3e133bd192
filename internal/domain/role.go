package domain

// Role is a permission group resolved for the acting user.
type Role string

const (
	RoleEndUser        Role = "END_USER"
	RoleSupportStaff   Role = "SUPPORT_STAFF"
	RoleSupportManager Role = "SUPPORT_MANAGER"
	RoleAdmin          Role = "ADMIN"
)

// RoleSet is the set of roles an actor holds.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from a list, ignoring blanks.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether any of roles is in the set.
func (s RoleSet) Intersects(roles []Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}
