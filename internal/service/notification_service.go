package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/config"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/domain"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTransitionAction, n.handleTransitionAction)
	n.dispatcher.Subscribe(events.EventWorkflowChanged, n.handleWorkflowChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.ByteString("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.ByteString("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTransitionAction(ctx context.Context, event events.Event) error {
	var payload events.TransitionActionPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("ticket_id", event.TicketID),
		zap.String("action", string(payload.Action)),
		zap.Int("sequence", payload.Sequence),
		zap.String("transition_id", payload.TransitionID),
	}
	switch payload.Action {
	case domain.ActionSendEmail:
		n.sendEmailNotificationStub(ctx, event, "")
	case domain.ActionNotifyRequester:
		n.sendEmailNotificationStub(ctx, event, "requester")
	case domain.ActionNotifyAssignee:
		if payload.AssigneeID == nil {
			n.logger.Warn("NotifyAssignee skipped, ticket has no assignee", fields...)
			return nil
		}
		n.sendEmailNotificationStub(ctx, event, *payload.AssigneeID)
	case domain.ActionWebhook, domain.ActionSendNotification:
		n.sendWebhookNotificationStub(ctx, event)
	default:
		n.logger.Warn("unknown transition action", fields...)
		return nil
	}
	n.logger.Info("TransitionAction", fields...)
	return nil
}

func (n *NotificationService) handleWorkflowChanged(ctx context.Context, event events.Event) error {
	var payload events.WorkflowChangedPayload
	if err := event.Decode(&payload); err != nil {
		return err
	}
	n.logger.Info("WorkflowChanged",
		zap.String("deployment_id", event.DeploymentID),
		zap.String("operation", payload.Operation),
		zap.String("workflow_id", payload.WorkflowID),
		zap.String("active_id", payload.ActiveID),
		zap.Strings("repairs", payload.Repairs))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, recipient string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient", recipient),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
