package worker

import (
	"go.uber.org/zap"

	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/events"
	"github.com/NTGClarityPK/ntg-tickets-sub002/internal/service"
)

// notificationTopics are the event types the notification handlers consume.
var notificationTopics = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketStatusChanged,
	events.EventTransitionAction,
	events.EventWorkflowChanged,
}

// StartNotificationWorker subscribes the notification handlers to ticket and
// workflow events. A nil service leaves the dispatcher without consumers.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationService == nil {
		logger.Warn("notification worker disabled")
		return
	}
	notificationService.RegisterHandlers()

	topics := make([]string, 0, len(notificationTopics))
	for _, t := range notificationTopics {
		topics = append(topics, string(t))
	}
	logger.Info("notification worker subscribed", zap.Strings("topics", topics))
}
