package domain

import "sort"

// Actor is the authenticated caller a workflow operation runs on behalf of.
type Actor struct {
	SubjectID    string
	Roles        RoleSet
	DeploymentID string
}

// RoleList returns the actor's roles sorted by name.
func (a Actor) RoleList() []Role {
	out := make([]Role, 0, len(a.Roles))
	for r := range a.Roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
