package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/dto"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/service"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/workflow"
	apperrors "github.com/NTGClarityPK/ntg-tickets-sub002/pkg/util/errorutil"
)

// WorkflowsHandler exposes workflow definition management.
type WorkflowsHandler struct {
	service *service.WorkflowService
}

// NewWorkflowsHandler constructs handler.
func NewWorkflowsHandler(workflowService *service.WorkflowService) *WorkflowsHandler {
	return &WorkflowsHandler{service: workflowService}
}

// CreateWorkflow POST /workflows.
func (h *WorkflowsHandler) CreateWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	input, err := parseWorkflowRequest(c)
	if err != nil {
		return err
	}
	def, err := h.service.CreateWorkflow(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	resp, err := workflowResponse(def)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListWorkflows GET /workflows.
func (h *WorkflowsHandler) ListWorkflows(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	defs, err := h.service.ListWorkflows(c.UserContext(), actor.DeploymentID)
	if err != nil {
		return err
	}
	items := make([]dto.WorkflowSummary, 0, len(defs))
	for _, def := range defs {
		items = append(items, workflowSummary(def))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetActiveWorkflow GET /workflows/active.
func (h *WorkflowsHandler) GetActiveWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	def, err := h.service.ActiveWorkflow(c.UserContext(), actor.DeploymentID)
	if err != nil {
		return err
	}
	return h.respond(c, def)
}

// GetWorkflow GET /workflows/:id.
func (h *WorkflowsHandler) GetWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	def, err := h.service.GetWorkflow(c.UserContext(), actor.DeploymentID, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respond(c, def)
}

// UpdateWorkflow PUT /workflows/:id.
func (h *WorkflowsHandler) UpdateWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.EnsureEditable(c.UserContext(), actor.DeploymentID, c.Params("id")); err != nil {
		return err
	}
	input, err := parseWorkflowRequest(c)
	if err != nil {
		return err
	}
	def, err := h.service.UpdateWorkflow(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return h.respond(c, def)
}

// ActivateWorkflow POST /workflows/:id/activate.
func (h *WorkflowsHandler) ActivateWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ActivateWorkflowRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	var cat *workflow.Categorization
	if req.HasCategorization() {
		cat = &workflow.Categorization{Working: req.WorkingStatuses, Done: req.DoneStatuses}
	}
	def, err := h.service.ActivateWorkflow(c.UserContext(), actor, c.Params("id"), cat)
	if err != nil {
		return err
	}
	return h.respond(c, def)
}

// DeactivateWorkflow POST /workflows/:id/deactivate.
func (h *WorkflowsHandler) DeactivateWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	def, err := h.service.DeactivateWorkflow(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respond(c, def)
}

// DeleteWorkflow DELETE /workflows/:id.
func (h *WorkflowsHandler) DeleteWorkflow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteWorkflow(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// EvaluateTransition POST /workflows/evaluate.
func (h *WorkflowsHandler) EvaluateTransition(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.EvaluateTransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	roles := actor.Roles
	if len(req.Roles) > 0 {
		roles = domain.NewRoleSet(req.Roles...)
	}
	d, err := h.service.EvaluateDryRun(c.UserContext(), actor.DeploymentID, service.DryRunInput{
		WorkflowID: req.WorkflowID,
		From:       req.From,
		To:         req.To,
		Roles:      roles,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": decisionResponse(d)})
}

func (h *WorkflowsHandler) respond(c *fiber.Ctx, def *domain.WorkflowDefinition) error {
	resp, err := workflowResponse(def)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

func parseWorkflowRequest(c *fiber.Ctx) (service.WorkflowInput, error) {
	var req dto.WorkflowRequest
	if err := parseBody(c, &req); err != nil {
		return service.WorkflowInput{}, err
	}
	graph, layout, err := workflow.DecodeDocument(req.Document)
	if err != nil {
		return service.WorkflowInput{}, apperrors.NewValidationError("invalid workflow document",
			map[string]any{"document": err.Error()})
	}
	return service.WorkflowInput{
		Name:            req.Name,
		Description:     req.Description,
		Graph:           graph,
		Layout:          layout,
		WorkingStatuses: req.WorkingStatuses,
		DoneStatuses:    req.DoneStatuses,
		Status:          req.Status,
		IsDefault:       req.IsDefault,
	}, nil
}

func workflowResponse(def *domain.WorkflowDefinition) (dto.WorkflowResponse, error) {
	doc, err := workflow.EncodeDocument(def.Graph, def.Layout)
	if err != nil {
		return dto.WorkflowResponse{}, apperrors.NewInternalError(err)
	}
	return dto.WorkflowResponse{
		ID:              def.ID,
		DeploymentID:    def.DeploymentID,
		Name:            def.Name,
		Description:     def.Description,
		Version:         def.Version,
		Document:        doc,
		WorkingStatuses: nonNilKeys(def.WorkingStatuses),
		DoneStatuses:    nonNilKeys(def.DoneStatuses),
		Status:          def.Status,
		IsDefault:       def.IsDefault,
		IsSystemDefault: def.IsSystemDefault,
		CreatedAt:       def.CreatedAt,
		UpdatedAt:       def.UpdatedAt,
	}, nil
}

func workflowSummary(def *domain.WorkflowDefinition) dto.WorkflowSummary {
	return dto.WorkflowSummary{
		ID:              def.ID,
		Name:            def.Name,
		Version:         def.Version,
		Status:          def.Status,
		IsDefault:       def.IsDefault,
		IsSystemDefault: def.IsSystemDefault,
		UpdatedAt:       def.UpdatedAt,
	}
}

func decisionResponse(d workflow.Decision) dto.DecisionResponse {
	resp := dto.DecisionResponse{
		Allowed:     d.Allowed,
		Reason:      string(d.Reason),
		From:        d.From,
		To:          d.To,
		Conditions:  d.Conditions,
		Actions:     d.Actions,
		Unsatisfied: d.Unsatisfied,
	}
	if d.Transition != nil {
		resp.TransitionID = d.Transition.ID
		resp.Label = d.Transition.Label
		resp.AllowedRoles = d.Transition.AllowedRoles
	}
	return resp
}

func nonNilKeys(keys []domain.StatusKey) []domain.StatusKey {
	if keys == nil {
		return []domain.StatusKey{}
	}
	return keys
}
