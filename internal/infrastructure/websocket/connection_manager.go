package websocket

import (
	"sync"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// ConnectionManager is the fan-out hub: subscribers keyed by auction, one
// per user per auction. Broadcasting walks a copy of the subscriber list so
// registration never waits on delivery.
type ConnectionManager struct {
	subscribers map[string]map[string]domain.Subscriber // auctionID -> userID -> subscriber
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		subscribers: make(map[string]map[string]domain.Subscriber),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterSubscriber(userID, auctionID string, sub domain.Subscriber) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.subscribers[auctionID] == nil {
		cm.subscribers[auctionID] = make(map[string]domain.Subscriber)
	}

	// A reconnecting user replaces their previous subscription.
	if prev, ok := cm.subscribers[auctionID][userID]; ok {
		prev.Close()
	}
	cm.subscribers[auctionID][userID] = sub

	cm.log.Info("subscriber registered", "user_id", userID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManager) UnregisterSubscriber(userID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionSubs, ok := cm.subscribers[auctionID]; ok {
		delete(auctionSubs, userID)
		if len(auctionSubs) == 0 {
			delete(cm.subscribers, auctionID)
		}
	}

	cm.log.Info("subscriber unregistered", "user_id", userID, "auction_id", auctionID)
	return nil
}

// BroadcastToAuction delivers the event to everyone currently watching the
// auction. At-most-once per connected subscriber: a failed or slow send is
// dropped, never retried.
func (cm *ConnectionManager) BroadcastToAuction(auctionID string, event *domain.AuctionEvent) {
	cm.mutex.RLock()
	subs := make([]domain.Subscriber, 0, len(cm.subscribers[auctionID]))
	for _, sub := range cm.subscribers[auctionID] {
		subs = append(subs, sub)
	}
	cm.mutex.RUnlock()

	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			cm.log.Debug("dropped event for subscriber",
				"user_id", sub.UserID(), "auction_id", auctionID, "error", err)
		}
	}
}

// CloseAuction disconnects every subscriber of a closed auction after the
// final event has been offered to them.
func (cm *ConnectionManager) CloseAuction(auctionID string) error {
	cm.mutex.Lock()
	auctionSubs := cm.subscribers[auctionID]
	delete(cm.subscribers, auctionID)
	cm.mutex.Unlock()

	for userID, sub := range auctionSubs {
		if err := sub.Close(); err != nil {
			cm.log.Debug("failed to close subscriber",
				"user_id", userID, "auction_id", auctionID, "error", err)
		}
	}

	cm.log.Info("subscribers closed for auction", "auction_id", auctionID, "count", len(auctionSubs))
	return nil
}
