package service

import (
	"context"
	"strings"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// TransitionEvidence is the caller-supplied data conditions are checked against.
type TransitionEvidence struct {
	Comment     string
	Attachments int
	// AssigneeID, when set, is written to the ticket with the new status.
	AssigneeID *string
}

// ConditionChecker decides whether a transition condition is met for a ticket.
type ConditionChecker interface {
	Satisfied(ctx context.Context, ticket *domain.Ticket, kind domain.ConditionKind, evidence TransitionEvidence) bool
}

// EvidenceConditionChecker satisfies conditions from the request evidence and
// the ticket's stored fields. Unknown conditions are never satisfied.
type EvidenceConditionChecker struct{}

// Satisfied implements ConditionChecker.
func (EvidenceConditionChecker) Satisfied(_ context.Context, ticket *domain.Ticket, kind domain.ConditionKind, evidence TransitionEvidence) bool {
	switch kind {
	case domain.ConditionCommentRequired:
		return strings.TrimSpace(evidence.Comment) != ""
	case domain.ConditionAttachmentRequired:
		return evidence.Attachments > 0
	case domain.ConditionAssigneeRequired:
		if evidence.AssigneeID != nil && strings.TrimSpace(*evidence.AssigneeID) != "" {
			return true
		}
		return ticket != nil && ticket.AssigneeID != nil && strings.TrimSpace(*ticket.AssigneeID) != ""
	default:
		return false
	}
}

func bindChecker(ctx context.Context, checker ConditionChecker, ticket *domain.Ticket, evidence TransitionEvidence) workflow.ConditionChecker {
	return workflow.ConditionFunc(func(kind domain.ConditionKind) bool {
		return checker.Satisfied(ctx, ticket, kind, evidence)
	})
}

// ActionRequest is one committed transition whose actions must run.
type ActionRequest struct {
	DeploymentID string
	TicketID     string
	WorkflowID   string
	Actor        domain.Actor
	Decision     workflow.Decision
	AssigneeID   *string
}

// ActionDispatcher hands a transition's actions to the notification subsystem.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, req ActionRequest) error
}

// EventActionDispatcher publishes one transition_action event per action, in
// definition order.
type EventActionDispatcher struct {
	dispatcher events.Dispatcher
}

// NewEventActionDispatcher constructs the dispatcher.
func NewEventActionDispatcher(dispatcher events.Dispatcher) *EventActionDispatcher {
	return &EventActionDispatcher{dispatcher: dispatcher}
}

// Dispatch implements ActionDispatcher. It stops at the first failed publish.
func (d *EventActionDispatcher) Dispatch(ctx context.Context, req ActionRequest) error {
	if d.dispatcher == nil {
		return nil
	}
	transitionID := ""
	if req.Decision.Transition != nil {
		transitionID = req.Decision.Transition.ID
	}
	for i, action := range req.Decision.Actions {
		event, err := events.NewEvent(events.EventTransitionAction, req.DeploymentID, req.TicketID, eventActor(req.Actor), events.TransitionActionPayload{
			Action:       action,
			Sequence:     i,
			TransitionID: transitionID,
			From:         req.Decision.From,
			To:           req.Decision.To,
			WorkflowID:   req.WorkflowID,
			AssigneeID:   req.AssigneeID,
		})
		if err != nil {
			return err
		}
		if err := d.dispatcher.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
