package redis

import (
	"context"
	"encoding/json"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type EventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewEventSubscriber(client *redis.Client, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{
		client: client,
		log:    log,
	}
}

// SubscribeToAuctionEvents blocks until ctx is done, feeding every decoded
// event to handler. Handler errors are logged and skipped; delivery here is
// at-most-once by design, a reconnecting consumer reconciles via re-fetch.
func (s *EventSubscriber) SubscribeToAuctionEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := s.client.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	s.log.Info("subscribed to auction events", "channel", eventChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event domain.AuctionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.log.Error("failed to decode event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(&event); err != nil {
				s.log.Error("event handler failed",
					"auction_id", event.AuctionID, "type", event.Type, "error", err)
			}

		case <-ctx.Done():
			s.log.Info("event subscriber stopped")
			return ctx.Err()
		}
	}
}
