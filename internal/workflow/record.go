package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// DefinitionRecord is the JSON form of a whole definition, used by caches and
// event payloads. The graph travels as a nodes/edges document.
type DefinitionRecord struct {
	ID              string                `json:"id"`
	DeploymentID    string                `json:"deploymentId"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Version         int                   `json:"version"`
	Document        json.RawMessage       `json:"document"`
	WorkingStatuses []domain.StatusKey    `json:"workingStatuses"`
	DoneStatuses    []domain.StatusKey    `json:"doneStatuses"`
	Status          domain.WorkflowStatus `json:"status"`
	IsDefault       bool                  `json:"isDefault"`
	IsSystemDefault bool                  `json:"isSystemDefault"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// SnapshotRecord is the JSON stored in a ticket's workflow snapshot column.
type SnapshotRecord struct {
	WorkflowID      string             `json:"workflowId"`
	WorkflowName    string             `json:"workflowName"`
	Document        json.RawMessage    `json:"definition"`
	WorkingStatuses []domain.StatusKey `json:"workingStatuses"`
	DoneStatuses    []domain.StatusKey `json:"doneStatuses"`
	WorkflowVersion int                `json:"workflowVersion"`
	CapturedAt      time.Time          `json:"capturedAt"`
}

// MarshalDefinition encodes def as a DefinitionRecord.
func MarshalDefinition(def *domain.WorkflowDefinition) ([]byte, error) {
	doc, err := EncodeDocument(def.Graph, def.Layout)
	if err != nil {
		return nil, err
	}
	return marshalRecord(DefinitionRecord{
		ID:              def.ID,
		DeploymentID:    def.DeploymentID,
		Name:            def.Name,
		Description:     def.Description,
		Version:         def.Version,
		Document:        doc,
		WorkingStatuses: nonNil(def.WorkingStatuses),
		DoneStatuses:    nonNil(def.DoneStatuses),
		Status:          def.Status,
		IsDefault:       def.IsDefault,
		IsSystemDefault: def.IsSystemDefault,
		CreatedAt:       def.CreatedAt,
		UpdatedAt:       def.UpdatedAt,
	})
}

// UnmarshalDefinition decodes a DefinitionRecord.
func UnmarshalDefinition(data []byte) (*domain.WorkflowDefinition, error) {
	var rec DefinitionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode workflow definition: %w", err)
	}
	graph, layout, err := DecodeDocument(rec.Document)
	if err != nil {
		return nil, err
	}
	return &domain.WorkflowDefinition{
		ID:              rec.ID,
		DeploymentID:    rec.DeploymentID,
		Name:            rec.Name,
		Description:     rec.Description,
		Version:         rec.Version,
		Graph:           graph,
		Layout:          layout,
		WorkingStatuses: nilIfEmpty(rec.WorkingStatuses),
		DoneStatuses:    nilIfEmpty(rec.DoneStatuses),
		Status:          rec.Status,
		IsDefault:       rec.IsDefault,
		IsSystemDefault: rec.IsSystemDefault,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}, nil
}

// MarshalSnapshot encodes a ticket snapshot; nil encodes as nil.
func MarshalSnapshot(s *domain.TicketWorkflowSnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	doc, err := EncodeDocument(s.Graph, s.Layout)
	if err != nil {
		return nil, err
	}
	return marshalRecord(SnapshotRecord{
		WorkflowID:      s.WorkflowID,
		WorkflowName:    s.WorkflowName,
		Document:        doc,
		WorkingStatuses: nonNil(s.WorkingStatuses),
		DoneStatuses:    nonNil(s.DoneStatuses),
		WorkflowVersion: s.WorkflowVersion,
		CapturedAt:      s.CapturedAt,
	})
}

// UnmarshalSnapshot decodes a ticket snapshot; empty input yields nil.
func UnmarshalSnapshot(data []byte) (*domain.TicketWorkflowSnapshot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var rec SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode workflow snapshot: %w", err)
	}
	graph, layout, err := DecodeDocument(rec.Document)
	if err != nil {
		return nil, err
	}
	return &domain.TicketWorkflowSnapshot{
		WorkflowID:      rec.WorkflowID,
		WorkflowName:    rec.WorkflowName,
		Graph:           graph,
		Layout:          layout,
		WorkingStatuses: nilIfEmpty(rec.WorkingStatuses),
		DoneStatuses:    nilIfEmpty(rec.DoneStatuses),
		WorkflowVersion: rec.WorkflowVersion,
		CapturedAt:      rec.CapturedAt,
	}, nil
}

// marshalRecord keeps embedded documents byte-identical by not escaping HTML.
func marshalRecord(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
