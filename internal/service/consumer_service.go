package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/pkg/mailer"
	"ai-casedraft-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	EventSessionFinalized = "SESSION_FINALIZED"
	EventSessionFailed    = "SESSION_FAILED"
	EventVersionRecorded  = "VERSION_RECORDED"
)

const eventPublishTimeout = 5 * time.Second

// SessionUpdateDelivery pushes updates to live clients of a session.
type SessionUpdateDelivery interface {
	SendToSession(update dto.SessionUpdate)
}

// EventPublisher publishes lifecycle events to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub      *gochannel.GoChannel
	topicName   string
	delivery    SessionUpdateDelivery
	events      EventPublisher
	email       mailer.IEmailService
	notifyEmail string
	logger      logger.ILogger
}

// NewConsumerService fans session updates out to live clients, the event bus
// and, for finalized drafts, the notification mailbox. Any of delivery,
// eventPublisher and email may be nil.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	delivery SessionUpdateDelivery,
	eventPublisher EventPublisher,
	email mailer.IEmailService,
	notifyEmail string,
	log logger.ILogger,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consumerService{
		pubSub:      pubSub,
		topicName:   topicName,
		delivery:    delivery,
		events:      eventPublisher,
		email:       email,
		notifyEmail: notifyEmail,
		logger:      log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var update dto.SessionUpdate
	if err := json.Unmarshal(msg.Payload, &update); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal session update", map[string]interface{}{
			"error": err.Error(),
		})
		// Redelivery cannot fix a malformed payload.
		msg.Ack()
		return
	}

	if cs.delivery != nil {
		cs.delivery.SendToSession(update)
	}

	if evt, ok := lifecycleEvent(update); ok && cs.events != nil {
		pubCtx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
		err := cs.events.Publish(pubCtx, evt)
		cancel()
		if err != nil {
			cs.logger.Warn("Consumer", "Failed to publish lifecycle event", map[string]interface{}{
				"type":       evt.EventType(),
				"session_id": update.SessionId,
				"error":      err.Error(),
			})
		}
	}

	if update.Kind == dto.UpdateFinalized && update.Version != nil {
		// SMTP is slow; the publisher waits for this ack.
		go cs.notifyFinalized(update)
	}

	msg.Ack()
}

func (cs *consumerService) notifyFinalized(update dto.SessionUpdate) {
	if cs.email == nil || cs.notifyEmail == "" {
		return
	}
	err := cs.email.SendDocumentReady(cs.notifyEmail, mailer.DocumentReady{
		SessionId:     update.SessionId,
		CaseReference: update.CaseReference,
		VersionNumber: update.Version.SequenceNumber,
		Origin:        string(update.Version.Origin),
	})
	if err != nil {
		cs.logger.Error("Consumer", "Failed to send document-ready mail", map[string]interface{}{
			"session_id": update.SessionId,
			"error":      err.Error(),
		})
	}
}

// lifecycleEvent maps terminal and version updates to bus events. Stage and
// chunk traffic stays off the bus.
func lifecycleEvent(update dto.SessionUpdate) (events.Event, bool) {
	data := map[string]interface{}{
		"session_id":     update.SessionId,
		"case_reference": update.CaseReference,
	}

	var eventType string
	switch update.Kind {
	case dto.UpdateFinalized:
		eventType = EventSessionFinalized
	case dto.UpdateFailed:
		eventType = EventSessionFailed
		data["message"] = update.Message
		if update.Snapshot != nil {
			data["error_kind"] = string(update.Snapshot.ErrorKind)
			data["correlation_id"] = update.Snapshot.CorrelationID
		}
	case dto.UpdateVersion:
		eventType = EventVersionRecorded
	default:
		return nil, false
	}

	if update.Version != nil {
		data["version_number"] = update.Version.SequenceNumber
		data["origin"] = string(update.Version.Origin)
		data["description"] = update.Version.TriggeringDescription
		data["diff"] = fmt.Sprintf("+%d -%d", len(update.Version.DiffAgainstPrevious.AddedLines), len(update.Version.DiffAgainstPrevious.RemovedLines))
	}

	return events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: update.OccurredAt,
	}, true
}
