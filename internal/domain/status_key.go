package domain

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const legacyStatusKeyPrefix = "workflow-"

// StatusKey names a status a workflow categorizes, optionally scoped to one workflow.
// A nil WorkflowID applies to whichever workflow declares the key.
type StatusKey struct {
	WorkflowID *string `json:"workflowId,omitempty"`
	Status     string  `json:"status"`
}

// UnqualifiedKey returns a key without a workflow scope.
func UnqualifiedKey(status string) StatusKey {
	return StatusKey{Status: status}
}

// QualifiedKey returns a key scoped to workflowID.
func QualifiedKey(workflowID, status string) StatusKey {
	id := workflowID
	return StatusKey{WorkflowID: &id, Status: status}
}

// IsQualified reports whether the key is scoped to a workflow.
func (k StatusKey) IsQualified() bool {
	return k.WorkflowID != nil && *k.WorkflowID != ""
}

// Legacy renders the key in the `workflow-{id}-{status}` form older clients send.
func (k StatusKey) Legacy() string {
	if !k.IsQualified() {
		return k.Status
	}
	return legacyStatusKeyPrefix + *k.WorkflowID + "-" + k.Status
}

// ParseStatusKey decodes the legacy string form. knownIDs disambiguates workflow
// IDs containing hyphens; when none match, a UUID-shaped ID is tried before
// splitting at the first hyphen.
func ParseStatusKey(raw string, knownIDs ...string) StatusKey {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, legacyStatusKeyPrefix)
	if !ok || rest == "" {
		return UnqualifiedKey(raw)
	}

	best := ""
	for _, id := range knownIDs {
		if id == "" || len(id) <= len(best) {
			continue
		}
		if strings.HasPrefix(rest, id+"-") && len(rest) > len(id)+1 {
			best = id
		}
	}
	if best != "" {
		return QualifiedKey(best, rest[len(best)+1:])
	}

	const uuidLen = 36
	if len(rest) > uuidLen+1 && rest[uuidLen] == '-' {
		if _, err := uuid.Parse(rest[:uuidLen]); err == nil {
			return QualifiedKey(rest[:uuidLen], rest[uuidLen+1:])
		}
	}

	id, status, found := strings.Cut(rest, "-")
	if !found || id == "" || status == "" {
		return UnqualifiedKey(raw)
	}
	return QualifiedKey(id, status)
}

// ResolveStatusKeys re-splits qualified keys whose workflow ID is not in
// knownIDs. A legacy string naming a hyphenated ID decodes without knowing
// the deployment's IDs; this binds it to the longest known ID it starts with.
func ResolveStatusKeys(keys []StatusKey, knownIDs []string) []StatusKey {
	if len(keys) == 0 || len(knownIDs) == 0 {
		return keys
	}
	known := make(map[string]struct{}, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = struct{}{}
	}
	out := make([]StatusKey, len(keys))
	for i, k := range keys {
		if k.IsQualified() {
			if _, ok := known[*k.WorkflowID]; !ok {
				k = ParseStatusKey(k.Legacy(), knownIDs...)
			}
		}
		out[i] = k
	}
	return out
}

// UnmarshalJSON accepts either the object form or the legacy string form.
// Legacy strings are split without the deployment's workflow IDs; see
// ResolveStatusKeys.
func (k *StatusKey) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*k = ParseStatusKey(raw)
		return nil
	}
	type plain StatusKey
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("status key must be a string or {workflowId,status} object")
	}
	if obj.WorkflowID != nil && *obj.WorkflowID == "" {
		obj.WorkflowID = nil
	}
	*k = StatusKey(obj)
	return nil
}

// CloneStatusKeys deep copies a key list.
func CloneStatusKeys(in []StatusKey) []StatusKey {
	if in == nil {
		return nil
	}
	out := make([]StatusKey, len(in))
	for i, k := range in {
		out[i] = StatusKey{WorkflowID: cloneString(k.WorkflowID), Status: k.Status}
	}
	return out
}
