package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/api/dto"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/service"
)

// TicketsHandler creates tickets and moves them through their workflow.
type TicketsHandler struct {
	service *service.TicketWorkflowService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketWorkflowService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		WorkflowID: req.WorkflowID,
		Evidence: service.TransitionEvidence{
			Comment:     req.Comment,
			Attachments: req.Attachments,
			AssigneeID:  req.AssigneeID,
		},
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": transitionResponse(res)})
}

// TransitionTicket POST /tickets/:id/transitions.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.TransitionTicket(c.UserContext(), actor, c.Params("id"), req.Target, service.TransitionEvidence{
		Comment:     req.Comment,
		Attachments: req.Attachments,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(res)})
}

// ListTransitions GET /tickets/:id/transitions.
func (h *TicketsHandler) ListTransitions(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, decisions, err := h.service.PreviewTransitions(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.DecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		items = append(items, decisionResponse(d))
	}
	return c.JSON(fiber.Map{"data": dto.TransitionPreviewResponse{
		Ticket:      ticketSummary(ticket),
		Transitions: items,
	}})
}

func transitionResponse(res *service.TransitionResult) dto.TransitionResponse {
	return dto.TransitionResponse{
		Ticket:   ticketSummary(res.Ticket),
		Decision: decisionResponse(res.Decision),
	}
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	summary := dto.TicketSummary{
		ID:              ticket.ID,
		Status:          ticket.Status,
		WorkflowID:      ticket.WorkflowID,
		WorkflowVersion: ticket.WorkflowVersion,
		AssigneeID:      ticket.AssigneeID,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
	if ticket.WorkflowSnapshot != nil {
		summary.WorkflowName = ticket.WorkflowSnapshot.WorkflowName
	}
	return summary
}
