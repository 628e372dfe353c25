package service

import (
	"context"
	"encoding/json"

	"ai-casedraft-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
	// Listener adapts the publisher to a session listener.
	Listener() SessionListener
}

type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
	onError   func(err error)
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel, onError func(err error)) IPublisherService {
	if onError == nil {
		onError = func(error) {}
	}
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		onError:   onError,
	}
}

func (p *publisherService) Publish(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.pubSub.Publish(p.topicName, msg)
}

func (p *publisherService) Listener() SessionListener {
	return func(update dto.SessionUpdate) {
		payload, err := json.Marshal(update)
		if err != nil {
			p.onError(err)
			return
		}
		if err := p.Publish(context.Background(), payload); err != nil {
			p.onError(err)
		}
	}
}
