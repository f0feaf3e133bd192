package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// Node types written for states that carry no layout of their own.
const (
	NodeTypeStart   = "input"
	NodeTypeDefault = "default"
)

// Document is the nodes/edges JSON a workflow is stored and exchanged as.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one state as the designer canvas sees it.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the node label, color and initial flag.
type NodeData struct {
	Label     string `json:"label"`
	Color     string `json:"color"`
	IsInitial bool   `json:"isInitial,omitempty"`
}

// Edge is one transition as the designer canvas sees it.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Label  string   `json:"label"`
	Data   EdgeData `json:"data"`
}

// EdgeData holds the transition gates and effects.
type EdgeData struct {
	Roles              []domain.Role          `json:"roles"`
	Conditions         []domain.ConditionKind `json:"conditions"`
	Actions            []domain.ActionKind    `json:"actions"`
	IsCreateTransition bool                   `json:"isCreateTransition,omitempty"`
}

// DecodeDocument parses the nodes/edges JSON into the semantic graph and its
// layout. Designer keys the graph does not model, and omitted keys the
// canonical form would add, are preserved in Layout.Source.
func DecodeDocument(data []byte) (domain.WorkflowGraph, domain.Layout, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return domain.WorkflowGraph{}, domain.Layout{}, fmt.Errorf("decode workflow document: %w", err)
	}
	graph, layout := doc.Split()

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return domain.WorkflowGraph{}, domain.Layout{}, fmt.Errorf("decode workflow document: %w", err)
	}
	canonical, err := NewDocument(graph, layout).Marshal()
	if err != nil {
		return domain.WorkflowGraph{}, domain.Layout{}, err
	}
	if !bytes.Equal(compact.Bytes(), canonical) {
		layout.Source = compact.Bytes()
	}
	return graph, layout, nil
}

// EncodeDocument renders graph and layout as nodes/edges JSON. A layout
// decoded from a designer document yields that document unchanged; any other
// layout is rendered in canonical form, which decodes and encodes to
// identical bytes.
func EncodeDocument(graph domain.WorkflowGraph, layout domain.Layout) ([]byte, error) {
	if len(layout.Source) > 0 {
		return append([]byte(nil), layout.Source...), nil
	}
	return NewDocument(graph, layout).Marshal()
}

// NewDocument joins a graph with its layout. States without layout get a
// placeholder node type at the origin.
func NewDocument(graph domain.WorkflowGraph, layout domain.Layout) Document {
	doc := Document{
		Nodes: make([]Node, 0, len(graph.States)),
		Edges: make([]Edge, 0, len(graph.Transitions)),
	}
	for _, s := range graph.States {
		nl, ok := layout.Nodes[s.ID]
		if !ok || nl.Type == "" {
			nl.Type = NodeTypeDefault
			if s.ID == domain.CreateStateID {
				nl.Type = NodeTypeStart
			}
		}
		doc.Nodes = append(doc.Nodes, Node{
			ID:       s.ID,
			Type:     nl.Type,
			Position: Position{X: nl.Position.X, Y: nl.Position.Y},
			Data:     NodeData{Label: s.Name, Color: nl.Color, IsInitial: s.IsInitial},
		})
	}
	for _, t := range graph.Transitions {
		doc.Edges = append(doc.Edges, Edge{
			ID:     t.ID,
			Source: t.From,
			Target: t.To,
			Label:  t.Label,
			Data: EdgeData{
				Roles:              nonNil(t.AllowedRoles),
				Conditions:         nonNil(t.Conditions),
				Actions:            nonNil(t.Actions),
				IsCreateTransition: t.IsCreateTransition,
			},
		})
	}
	return doc
}

// Split separates the document into semantics and presentation.
func (d Document) Split() (domain.WorkflowGraph, domain.Layout) {
	graph := domain.WorkflowGraph{}
	layout := domain.Layout{Nodes: make(map[string]domain.NodeLayout, len(d.Nodes))}
	for _, n := range d.Nodes {
		graph.States = append(graph.States, domain.State{
			ID:        n.ID,
			Name:      n.Data.Label,
			IsInitial: n.Data.IsInitial,
		})
		layout.Nodes[n.ID] = domain.NodeLayout{
			Type:     n.Type,
			Position: domain.Position{X: n.Position.X, Y: n.Position.Y},
			Color:    n.Data.Color,
		}
	}
	for _, e := range d.Edges {
		graph.Transitions = append(graph.Transitions, domain.Transition{
			ID:                 e.ID,
			From:               e.Source,
			To:                 e.Target,
			Label:              e.Label,
			AllowedRoles:       nilIfEmpty(e.Data.Roles),
			Conditions:         nilIfEmpty(e.Data.Conditions),
			Actions:            nilIfEmpty(e.Data.Actions),
			IsCreateTransition: e.Data.IsCreateTransition,
		})
	}
	return graph, layout
}

// Marshal encodes the document in canonical compact form without HTML escaping.
func (d Document) Marshal() ([]byte, error) {
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	d.Edges = append(make([]Edge, 0, len(d.Edges)), d.Edges...)
	for i := range d.Edges {
		d.Edges[i].Data.Roles = nonNil(d.Edges[i].Data.Roles)
		d.Edges[i].Data.Conditions = nonNil(d.Edges[i].Data.Conditions)
		d.Edges[i].Data.Actions = nonNil(d.Edges[i].Data.Actions)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode workflow document: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func nilIfEmpty[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	return in
}
