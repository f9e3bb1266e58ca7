package service

import (
	"context"
	"encoding/json"

	"ctfpilot-be/internal/dto"
	"ctfpilot-be/internal/pkg/logger"
	"ctfpilot-be/internal/websocket"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the internal update bus and forwards job stream
// messages to connected websocket clients.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	hub       *websocket.Hub
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	hub *websocket.Hub,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		hub:       hub,
		logger:    logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var payload dto.JobStreamMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer", "Failed to unmarshal stream message", map[string]interface{}{
			"error": err.Error(),
		})
		// Invalid payloads are dropped, retrying cannot fix them.
		msg.Ack()
		return
	}

	switch payload.Kind {
	case dto.StreamKindProgress:
		cs.hub.BroadcastJobProgress(payload.JobId, payload.Status, payload.Progress, payload.Message)
	case dto.StreamKindLog:
		cs.hub.BroadcastJobLog(payload.JobId, payload.Entry, payload.Level)
	case dto.StreamKindComplete:
		cs.hub.BroadcastJobComplete(payload.JobId, payload.Status, payload.FlagCandidates, payload.ErrorMessage)
	default:
		cs.logger.Warn("consumer", "Unknown stream message kind", map[string]interface{}{
			"kind": payload.Kind,
		})
	}

	msg.Ack()
}
