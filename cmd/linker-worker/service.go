package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
	"github.com/angelmondragon/licensegate-backend/pkg/outbox"
)

// Consumer processes one decoded outbox event.
type Consumer interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

// Service drains account events off Pub/Sub and hands them to the linker
// consumer. Malformed messages are acked so they do not clog the
// subscription; consumer failures nack for redelivery.
type Service struct {
	subscription *gcppubsub.Subscriber
	consumer     Consumer
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, consumer Consumer, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("accounts subscription is required")
	}
	if consumer == nil {
		return nil, errors.New("linker consumer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		consumer:     consumer,
		logg:         logg,
	}, nil
}

// Run consumes messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) (nack bool) {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logg.Error(logCtx, "invalid payload envelope", err)
		return false
	}

	rawType := strings.TrimSpace(msg.Attributes["event_type"])
	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		s.logg.Error(logCtx, "unknown event type", err)
		return false
	}

	if err := s.consumer.Process(logCtx, eventType, envelope); err != nil {
		s.logg.Error(logCtx, "linker consumer failed", err)
		return true
	}
	return false
}
