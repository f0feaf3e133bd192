package workflow

import (
	"time"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
)

// Bind captures the snapshot a new ticket keeps for its whole life. The
// result shares no memory with def.
func Bind(def *domain.WorkflowDefinition, now time.Time) *domain.TicketWorkflowSnapshot {
	if def == nil {
		return nil
	}
	return &domain.TicketWorkflowSnapshot{
		WorkflowID:      def.ID,
		WorkflowName:    def.Name,
		Graph:           def.Graph.Clone(),
		Layout:          def.Layout.Clone(),
		WorkingStatuses: domain.CloneStatusKeys(def.WorkingStatuses),
		DoneStatuses:    domain.CloneStatusKeys(def.DoneStatuses),
		WorkflowVersion: def.Version,
		CapturedAt:      now.UTC(),
	}
}

// LiveSnapshot builds the throwaway snapshot used for tickets that were never
// bound. It reflects the active workflow at the moment of the call.
func LiveSnapshot(active *domain.WorkflowDefinition, now time.Time) *domain.TicketWorkflowSnapshot {
	return Bind(active, now)
}
