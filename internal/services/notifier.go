package services

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// EventNotifier is the best-effort collaborator hook (email/push lives
// behind it in production). It consumes the same event stream as the
// websocket fan-out; its errors never touch auction state.
type EventNotifier struct {
	log logger.Logger
}

func NewEventNotifier(log logger.Logger) *EventNotifier {
	return &EventNotifier{log: log}
}

func (n *EventNotifier) Handle(event *domain.AuctionEvent) error {
	switch event.Type {
	case domain.EventAuctionClosed:
		if event.WinnerID == "" {
			n.log.Info("auction closed without bids", "auction_id", event.AuctionID)
			return nil
		}
		n.log.Info("notifying winner and seller",
			"auction_id", event.AuctionID,
			"winner_id", event.WinnerID,
			"winning_amount", event.WinningAmount)
	case domain.EventBidAccepted:
		n.log.Debug("bid notification",
			"auction_id", event.AuctionID,
			"bidder_id", event.BidderID,
			"amount", event.Amount)
	}
	return nil
}
