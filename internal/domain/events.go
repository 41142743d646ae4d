package domain

import (
	"time"
)

type AuctionEventType string

const (
	EventBidAccepted   AuctionEventType = "bid_accepted"
	EventAuctionClosed AuctionEventType = "auction_closed"
)

// AuctionEvent is what the fan-out delivers to subscribers of one auction.
// Bid events carry the new high bid and whether the deadline moved; close
// events carry the frozen winner.
type AuctionEvent struct {
	Type          AuctionEventType `json:"type"`
	AuctionID     string           `json:"auction_id"`
	BidderID      string           `json:"bidder_id,omitempty"`
	Amount        int64            `json:"amount,omitempty"`
	EndTime       time.Time        `json:"end_time"`
	Extended      bool             `json:"extended,omitempty"`
	WinnerID      string           `json:"winner_id,omitempty"`
	WinningAmount int64            `json:"winning_amount,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
