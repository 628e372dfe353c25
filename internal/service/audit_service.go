package service

import (
	"context"

	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/pkg/events"
	pktNats "ai-casedraft-be/pkg/nats"
)

// EventSubscriber is the durable side of the lifecycle bus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) error
}

type IAuditService interface {
	Start(ctx context.Context) error
}

type auditService struct {
	subscriber EventSubscriber
	logger     logger.ILogger
}

// NewAuditService writes every lifecycle event to the audit log.
func NewAuditService(subscriber EventSubscriber, log logger.ILogger) IAuditService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &auditService{subscriber: subscriber, logger: log}
}

func (a *auditService) Start(ctx context.Context) error {
	return a.subscriber.Subscribe(ctx, pktNats.SubjectPrefix+">", "session-audit", a.record)
}

func (a *auditService) record(ctx context.Context, event events.Event) error {
	details := map[string]interface{}{
		"event":       event.EventType(),
		"occurred_at": event.Timestamp(),
	}
	for k, v := range event.Payload() {
		details[k] = v
	}
	a.logger.Info("Audit", "Session lifecycle event", details)
	return nil
}
