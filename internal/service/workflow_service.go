package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/cache"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/observability"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/repository"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
)

// Lifecycle operation names used in logs, metrics and workflow_changed events.
const (
	OpCreate              = "create"
	OpUpdate              = "update"
	OpActivate            = "activate"
	OpDeactivate          = "deactivate"
	OpDelete              = "delete"
	OpEnsureSystemDefault = "ensure_system_default"
)

// SystemActorID marks lifecycle changes the service makes on its own.
const SystemActorID = "system"

// WorkflowService administers the workflows of each deployment and keeps
// exactly one of them active.
type WorkflowService struct {
	workflows  repository.WorkflowRepository
	cache      cache.ActiveWorkflowCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	WorkflowRepo repository.WorkflowRepository
	Cache        cache.ActiveWorkflowCache
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// WorkflowInput is the editable part of a workflow definition.
type WorkflowInput struct {
	Name            string
	Description     string
	Graph           domain.WorkflowGraph
	Layout          domain.Layout
	WorkingStatuses []domain.StatusKey
	DoneStatuses    []domain.StatusKey
	// Status is honored on create only; ACTIVE activates the new workflow.
	Status    domain.WorkflowStatus
	IsDefault bool
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	s := &WorkflowService{
		workflows:  deps.WorkflowRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
	}
	if s.cache == nil {
		s.cache = cache.Noop()
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

func (in WorkflowInput) definition(id, deploymentID string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:              id,
		DeploymentID:    deploymentID,
		Name:            in.Name,
		Description:     in.Description,
		Graph:           in.Graph.Clone(),
		Layout:          in.Layout.Clone(),
		WorkingStatuses: domain.CloneStatusKeys(in.WorkingStatuses),
		DoneStatuses:    domain.CloneStatusKeys(in.DoneStatuses),
		Status:          in.Status,
		IsDefault:       in.IsDefault,
	}
}

// CreateWorkflow stores a new workflow. It starts as DRAFT unless ACTIVE is requested.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, actor domain.Actor, input WorkflowInput) (*domain.WorkflowDefinition, error) {
	id := s.newID()
	def := input.definition(id, actor.DeploymentID)
	r, err := s.mutate(ctx, actor, OpCreate, id, func(_ context.Context, r *workflow.Roster, _ repository.WorkflowTx) error {
		resolveStatusKeys(def, append(r.IDs(), id))
		if err := workflow.ValidateDefinition(def); err != nil {
			return err
		}
		return r.Add(def)
	})
	if err != nil {
		return nil, err
	}
	created, _ := r.Get(id)
	return created, nil
}

// UpdateWorkflow replaces the graph, layout and categorization of id and
// bumps its version. The system default workflow cannot be edited, whatever
// the input.
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, actor domain.Actor, id string, input WorkflowInput) (*domain.WorkflowDefinition, error) {
	def := input.definition(id, actor.DeploymentID)
	def.Status = ""
	r, err := s.mutate(ctx, actor, OpUpdate, id, func(_ context.Context, r *workflow.Roster, _ repository.WorkflowTx) error {
		if err := r.Editable(OpUpdate, id); err != nil {
			return err
		}
		resolveStatusKeys(def, r.IDs())
		if err := workflow.ValidateDefinition(def); err != nil {
			return err
		}
		return r.Replace(def)
	})
	if err != nil {
		return nil, err
	}
	updated, _ := r.Get(id)
	return updated, nil
}

// ActivateWorkflow makes id the only ACTIVE workflow of the actor's
// deployment. A non-nil cat overwrites its categorization; the system
// default refuses one with ErrForbidden.
func (s *WorkflowService) ActivateWorkflow(ctx context.Context, actor domain.Actor, id string, cat *workflow.Categorization) (*domain.WorkflowDefinition, error) {
	r, err := s.mutate(ctx, actor, OpActivate, id, func(_ context.Context, r *workflow.Roster, _ repository.WorkflowTx) error {
		if cat == nil {
			return r.Activate(id, nil)
		}
		known := r.IDs()
		return r.Activate(id, &workflow.Categorization{
			Working: domain.ResolveStatusKeys(cat.Working, known),
			Done:    domain.ResolveStatusKeys(cat.Done, known),
		})
	})
	if err != nil {
		return nil, err
	}
	activated, _ := r.Get(id)
	return activated, nil
}

// DeactivateWorkflow moves id to INACTIVE. The system default takes over
// when nothing else remains active.
func (s *WorkflowService) DeactivateWorkflow(ctx context.Context, actor domain.Actor, id string) (*domain.WorkflowDefinition, error) {
	r, err := s.mutate(ctx, actor, OpDeactivate, id, func(_ context.Context, r *workflow.Roster, _ repository.WorkflowTx) error {
		return r.Deactivate(id)
	})
	if err != nil {
		return nil, err
	}
	deactivated, _ := r.Get(id)
	return deactivated, nil
}

// DeleteWorkflow removes id unless it is the system default or any ticket references it.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, actor domain.Actor, id string) error {
	_, err := s.mutate(ctx, actor, OpDelete, id, func(ctx context.Context, r *workflow.Roster, tx repository.WorkflowTx) error {
		if _, ok := r.Get(id); !ok {
			return &workflow.OperationError{Op: OpDelete, WorkflowID: id, Err: workflow.ErrWorkflowNotFound}
		}
		refs, err := tx.CountTicketsReferencing(ctx, id)
		if err != nil {
			return err
		}
		return r.Remove(id, refs > 0)
	})
	if errors.Is(err, repository.ErrConstraint) {
		return &workflow.OperationError{Op: OpDelete, WorkflowID: id, Err: workflow.ErrConflict, Message: "workflow is referenced by existing tickets"}
	}
	return err
}

// EnsureSystemDefault seeds the built-in workflow into an empty deployment
// and repairs an inconsistent one. It returns the repairs applied.
func (s *WorkflowService) EnsureSystemDefault(ctx context.Context, deploymentID string) ([]string, error) {
	actor := domain.Actor{SubjectID: SystemActorID, DeploymentID: deploymentID}
	var repairs []string
	_, err := s.mutateWithRepairs(ctx, actor, OpEnsureSystemDefault, "", func(context.Context, *workflow.Roster, repository.WorkflowTx) error {
		return nil
	}, &repairs)
	return repairs, err
}

// EnsureEditable reports ErrWorkflowNotFound or ErrForbidden for an update
// of id before its payload is inspected.
func (s *WorkflowService) EnsureEditable(ctx context.Context, deploymentID, id string) error {
	def, err := s.GetWorkflow(ctx, deploymentID, id)
	if err != nil {
		return err
	}
	return workflow.NewRoster([]*domain.WorkflowDefinition{def}, s.now()).Editable(OpUpdate, id)
}

// GetWorkflow loads one workflow of a deployment.
func (s *WorkflowService) GetWorkflow(ctx context.Context, deploymentID, id string) (*domain.WorkflowDefinition, error) {
	def, err := s.workflows.GetByID(ctx, deploymentID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &workflow.OperationError{Op: "get", WorkflowID: id, Err: workflow.ErrWorkflowNotFound}
	}
	return def, err
}

// ListWorkflows returns every workflow of a deployment, oldest first.
func (s *WorkflowService) ListWorkflows(ctx context.Context, deploymentID string) ([]*domain.WorkflowDefinition, error) {
	return s.workflows.List(ctx, deploymentID)
}

// ActiveWorkflow returns the workflow currently governing new tickets,
// seeding the system default when the deployment has none.
func (s *WorkflowService) ActiveWorkflow(ctx context.Context, deploymentID string) (*domain.WorkflowDefinition, error) {
	if def, ok := s.cache.Get(ctx, deploymentID); ok {
		return def, nil
	}
	def, err := s.workflows.GetActive(ctx, deploymentID)
	if errors.Is(err, repository.ErrNotFound) {
		if _, err = s.EnsureSystemDefault(ctx, deploymentID); err != nil {
			return nil, err
		}
		def, err = s.workflows.GetActive(ctx, deploymentID)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, def)
	return def, nil
}

// DryRunInput names a transition to evaluate without a ticket.
type DryRunInput struct {
	// WorkflowID selects a stored workflow; empty means the active one.
	WorkflowID string
	// From empty or "create" evaluates the create transition.
	From  string
	To    string
	Roles domain.RoleSet
}

// EvaluateDryRun evaluates a transition against a stored workflow's live graph.
func (s *WorkflowService) EvaluateDryRun(ctx context.Context, deploymentID string, input DryRunInput) (workflow.Decision, error) {
	var (
		def *domain.WorkflowDefinition
		err error
	)
	if input.WorkflowID != "" {
		def, err = s.GetWorkflow(ctx, deploymentID, input.WorkflowID)
	} else {
		def, err = s.ActiveWorkflow(ctx, deploymentID)
	}
	if err != nil {
		return workflow.Decision{}, err
	}

	var d workflow.Decision
	if input.From == "" || input.From == domain.CreateStateID {
		d = workflow.EvaluateCreate(def, input.Roles)
	} else {
		d = workflow.EvaluateGraph(def.Graph, input.From, input.To, input.Roles)
	}
	s.metrics.RecordDecision(decisionOutcome(d))
	return d, nil
}

func resolveStatusKeys(def *domain.WorkflowDefinition, knownIDs []string) {
	def.WorkingStatuses = domain.ResolveStatusKeys(def.WorkingStatuses, knownIDs)
	def.DoneStatuses = domain.ResolveStatusKeys(def.DoneStatuses, knownIDs)
}

type rosterFunc func(ctx context.Context, r *workflow.Roster, tx repository.WorkflowTx) error

func (s *WorkflowService) mutate(ctx context.Context, actor domain.Actor, op, workflowID string, fn rosterFunc) (*workflow.Roster, error) {
	return s.mutateWithRepairs(ctx, actor, op, workflowID, fn, nil)
}

// mutateWithRepairs runs fn over the deployment's roster in one unit of work,
// heals and verifies the result, and persists only what changed.
func (s *WorkflowService) mutateWithRepairs(ctx context.Context, actor domain.Actor, op, workflowID string, fn rosterFunc, repairsOut *[]string) (*workflow.Roster, error) {
	deploymentID := actor.DeploymentID
	var (
		roster  *workflow.Roster
		repairs []string
	)
	err := s.workflows.WithinTx(ctx, deploymentID, func(ctx context.Context, tx repository.WorkflowTx) error {
		now := s.now().UTC()
		defs, err := tx.List(ctx)
		if err != nil {
			return err
		}
		r := workflow.NewRoster(defs, now)
		repairs = nil
		if r.Len() == 0 {
			if err := r.Add(workflow.SystemDefaultDefinition(s.newID(), deploymentID, now)); err != nil {
				return err
			}
			repairs = append(repairs, "seeded system default workflow")
		}
		if err := fn(ctx, r, tx); err != nil {
			return err
		}
		repairs = append(repairs, r.Heal()...)
		if err := r.Verify(); err != nil {
			s.logger.Error("workflow invariant violated",
				zap.String("deployment_id", deploymentID),
				zap.String("operation", op),
				zap.String("workflow_id", workflowID),
				zap.Error(err))
			return err
		}
		if removed := r.Removed(); len(removed) > 0 {
			if err := tx.Delete(ctx, removed...); err != nil {
				return err
			}
		}
		if changed := r.Changed(); len(changed) > 0 {
			if err := tx.Save(ctx, changed...); err != nil {
				return err
			}
		}
		roster = r
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConstraint) && op != OpDelete {
			return nil, &workflow.OperationError{Op: op, WorkflowID: workflowID, Err: workflow.ErrConflict, Message: "workflow set changed concurrently"}
		}
		return nil, err
	}

	if repairsOut != nil {
		*repairsOut = repairs
	}
	if len(roster.Changed()) == 0 && len(roster.Removed()) == 0 {
		return roster, nil
	}
	s.cache.Invalidate(ctx, deploymentID)
	s.metrics.RecordLifecycle(op, len(repairs))

	activeID := ""
	if active := roster.Active(); active != nil {
		activeID = active.ID
	}
	fields := []zap.Field{
		zap.String("deployment_id", deploymentID),
		zap.String("operation", op),
		zap.String("workflow_id", workflowID),
		zap.String("active_id", activeID),
		zap.String("actor_id", actor.SubjectID),
	}
	if len(repairs) > 0 {
		s.logger.Warn("workflow set repaired", append(fields, zap.Strings("repairs", repairs))...)
	} else {
		s.logger.Info("workflow set changed", fields...)
	}

	payload := events.WorkflowChangedPayload{
		Operation:  op,
		WorkflowID: workflowID,
		ActiveID:   activeID,
		Repairs:    repairs,
	}
	if def, ok := roster.Get(workflowID); ok {
		payload.Status = def.Status
		payload.Version = def.Version
	}
	s.publish(ctx, events.EventWorkflowChanged, deploymentID, "", actor, payload)
	return roster, nil
}

func (s *WorkflowService) publish(ctx context.Context, eventType events.EventType, deploymentID, ticketID string, actor domain.Actor, payload any) {
	publishEvent(ctx, s.dispatcher, s.logger, eventType, deploymentID, ticketID, actor, payload)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, eventType events.EventType, deploymentID, ticketID string, actor domain.Actor, payload any) {
	if dispatcher == nil {
		return
	}
	event, err := events.NewEvent(eventType, deploymentID, ticketID, eventActor(actor), payload)
	if err == nil {
		err = dispatcher.Publish(ctx, event)
	}
	if err != nil {
		logger.Warn("publish event failed",
			zap.String("event_type", string(eventType)),
			zap.String("deployment_id", deploymentID),
			zap.Error(err))
	}
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{SubjectID: actor.SubjectID, Roles: actor.RoleList()}
}

func decisionOutcome(d workflow.Decision) string {
	if d.Allowed {
		return "ALLOWED"
	}
	return string(d.Reason)
}
