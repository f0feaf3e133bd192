package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/observability"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// TicketWorkflowService moves tickets through the workflow they were bound to.
type TicketWorkflowService struct {
	tickets    repository.TicketRepository
	workflows  *WorkflowService
	conditions ConditionChecker
	actions    ActionDispatcher
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// TicketWorkflowDependencies bundles collaborators for the ticket workflow service.
type TicketWorkflowDependencies struct {
	TicketRepo repository.TicketRepository
	Workflows  *WorkflowService
	// Conditions defaults to EvidenceConditionChecker.
	Conditions ConditionChecker
	// Actions defaults to an EventActionDispatcher over Dispatcher.
	Actions    ActionDispatcher
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
	NewID      func() string
}

// NewTicketWorkflowService constructs the service.
func NewTicketWorkflowService(deps TicketWorkflowDependencies) *TicketWorkflowService {
	s := &TicketWorkflowService{
		tickets:    deps.TicketRepo,
		workflows:  deps.Workflows,
		conditions: deps.Conditions,
		actions:    deps.Actions,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
	}
	if s.conditions == nil {
		s.conditions = EvidenceConditionChecker{}
	}
	if s.actions == nil {
		s.actions = NewEventActionDispatcher(deps.Dispatcher)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateTicketInput selects the workflow a new ticket is opened under.
type CreateTicketInput struct {
	// WorkflowID must name the ACTIVE workflow when set.
	WorkflowID *string
	Evidence   TransitionEvidence
}

// TransitionResult is a committed transition.
type TransitionResult struct {
	Ticket   *domain.Ticket
	Decision workflow.Decision
}

// CreateTicket evaluates the create transition of the active workflow and
// stores a ticket bound to a snapshot of it.
func (s *TicketWorkflowService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*TransitionResult, error) {
	def, err := s.resolveCreateWorkflow(ctx, actor.DeploymentID, input.WorkflowID)
	if err != nil {
		return nil, err
	}

	d := workflow.EvaluateCreate(def, actor.Roles)
	d = workflow.CheckConditions(d, bindChecker(ctx, s.conditions, nil, input.Evidence))
	s.metrics.RecordDecision(decisionOutcome(d))
	if !d.Allowed {
		s.logDenied("create", actor, "", d)
		return nil, d.Err()
	}

	now := s.now().UTC()
	version := def.Version
	workflowID := def.ID
	ticket := &domain.Ticket{
		ID:               s.newID(),
		DeploymentID:     actor.DeploymentID,
		Status:           d.To,
		WorkflowID:       &workflowID,
		WorkflowSnapshot: workflow.Bind(def, now),
		WorkflowVersion:  &version,
		AssigneeID:       input.Evidence.AssigneeID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("deployment_id", ticket.DeploymentID),
		zap.String("workflow_id", workflowID),
		zap.Int("workflow_version", version),
		zap.String("status", ticket.Status))
	publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketCreated, ticket.DeploymentID, ticket.ID, actor, events.TicketCreatedPayload{
		WorkflowID:      workflowID,
		WorkflowVersion: version,
		Status:          ticket.Status,
	})
	s.dispatchActions(ctx, ticket, actor, workflowID, d)
	return &TransitionResult{Ticket: ticket, Decision: d}, nil
}

func (s *TicketWorkflowService) resolveCreateWorkflow(ctx context.Context, deploymentID string, requested *string) (*domain.WorkflowDefinition, error) {
	if requested == nil || *requested == "" {
		return s.workflows.ActiveWorkflow(ctx, deploymentID)
	}
	def, err := s.workflows.GetWorkflow(ctx, deploymentID, *requested)
	if err != nil {
		return nil, err
	}
	if !def.IsActive() {
		return nil, &workflow.OperationError{
			Op:         "create ticket under",
			WorkflowID: def.ID,
			Err:        workflow.ErrInvalidStatusChange,
			Message:    "tickets can only be opened under the active workflow",
		}
	}
	return def, nil
}

// TransitionTicket moves a ticket to target when its bound workflow allows
// the actor to. Unbound tickets are evaluated against the active workflow.
func (s *TicketWorkflowService) TransitionTicket(ctx context.Context, actor domain.Actor, ticketID, target string, evidence TransitionEvidence) (*TransitionResult, error) {
	ticket, snapshot, err := s.load(ctx, actor.DeploymentID, ticketID)
	if err != nil {
		return nil, err
	}

	d := workflow.Evaluate(snapshot, ticket.Status, target, actor.Roles)
	d = workflow.CheckConditions(d, bindChecker(ctx, s.conditions, ticket, evidence))
	s.metrics.RecordDecision(decisionOutcome(d))
	if !d.Allowed {
		s.logDenied("transition", actor, ticket.ID, d)
		return nil, d.Err()
	}

	from := ticket.Status
	updated := ticket.Clone()
	updated.Status = d.To
	if evidence.AssigneeID != nil {
		updated.AssigneeID = evidence.AssigneeID
	}
	updated.UpdatedAt = s.now().UTC()
	if err := s.tickets.UpdateStatus(ctx, updated, from); err != nil {
		return nil, err
	}

	transitionID := ""
	if d.Transition != nil {
		transitionID = d.Transition.ID
	}
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", updated.ID),
		zap.String("from", from),
		zap.String("to", updated.Status),
		zap.String("transition_id", transitionID),
		zap.Bool("legacy", !ticket.IsBound()))
	publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketStatusChanged, updated.DeploymentID, updated.ID, actor, events.TicketStatusChangedPayload{
		OldStatus:    from,
		NewStatus:    updated.Status,
		WorkflowID:   updated.WorkflowID,
		TransitionID: transitionID,
		Comment:      evidence.Comment,
	})
	s.dispatchActions(ctx, updated, actor, snapshot.WorkflowID, d)
	return &TransitionResult{Ticket: updated, Decision: d}, nil
}

// PreviewTransitions evaluates every transition leaving the ticket's current status.
func (s *TicketWorkflowService) PreviewTransitions(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, []workflow.Decision, error) {
	ticket, snapshot, err := s.load(ctx, actor.DeploymentID, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, workflow.AvailableTransitions(snapshot.Graph, ticket.Status, actor.Roles), nil
}

// load returns the ticket and the snapshot it is evaluated against.
func (s *TicketWorkflowService) load(ctx context.Context, deploymentID, ticketID string) (*domain.Ticket, *domain.TicketWorkflowSnapshot, error) {
	ticket, err := s.tickets.GetByID(ctx, deploymentID, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errTicketNotFound
		}
		return nil, nil, err
	}
	if ticket.IsBound() {
		return ticket, ticket.WorkflowSnapshot, nil
	}
	// TODO: re-bind legacy tickets once the data migration for null workflow_id rows lands.
	active, err := s.workflows.ActiveWorkflow(ctx, deploymentID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("evaluating unbound ticket against live workflow",
		zap.String("ticket_id", ticket.ID),
		zap.String("workflow_id", active.ID))
	return ticket, workflow.LiveSnapshot(active, s.now()), nil
}

func (s *TicketWorkflowService) dispatchActions(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, workflowID string, d workflow.Decision) {
	if len(d.Actions) == 0 {
		return
	}
	err := s.actions.Dispatch(ctx, ActionRequest{
		DeploymentID: ticket.DeploymentID,
		TicketID:     ticket.ID,
		WorkflowID:   workflowID,
		Actor:        actor,
		Decision:     d,
		AssigneeID:   ticket.AssigneeID,
	})
	if err != nil {
		s.logger.Error("dispatch transition actions failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

func (s *TicketWorkflowService) logDenied(op string, actor domain.Actor, ticketID string, d workflow.Decision) {
	s.logger.Info("transition denied",
		zap.String("operation", op),
		zap.String("ticket_id", ticketID),
		zap.String("actor_id", actor.SubjectID),
		zap.String("from", d.From),
		zap.String("to", d.To),
		zap.String("reason", string(d.Reason)))
}
