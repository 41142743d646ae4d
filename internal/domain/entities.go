package domain

import (
	"time"
)

// Auction is the single piece of mutable shared state in the engine. All
// mutation goes through the bid coordinator; Version backs the
// compare-and-swap on every save.
type Auction struct {
	ID               string
	MachineID        string
	SellerID         string
	StartingPrice    int64
	MinimumIncrement int64
	CurrentBid       int64
	CurrentBidBy     string
	StartTime        time.Time
	EndTime          time.Time
	Active           bool
	WinnerID         string
	WinningAmount    int64
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AuctionStatus int

const (
	AuctionScheduled AuctionStatus = iota
	AuctionActive
	AuctionClosed
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionScheduled:
		return "scheduled"
	case AuctionActive:
		return "active"
	case AuctionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status derives the lifecycle state from the stored flag and the clock.
// Scheduled -> Active is implicit; only Closed is a stored transition.
func (a *Auction) Status(now time.Time) AuctionStatus {
	if !a.Active {
		return AuctionClosed
	}
	if now.Before(a.StartTime) {
		return AuctionScheduled
	}
	return AuctionActive
}

// Floor is the basis for the next minimum acceptable bid: the greater of
// the current highest bid and the starting price.
func (a *Auction) Floor() int64 {
	if a.CurrentBid > a.StartingPrice {
		return a.CurrentBid
	}
	return a.StartingPrice
}

func (a *Auction) MinimumNextBid() int64 {
	return a.Floor() + a.MinimumIncrement
}

// Bid is one row of the append-only ledger. PlacedAt is server-assigned
// under the per-auction lock, so it is monotonic per auction.
type Bid struct {
	ID        string
	AuctionID string
	BidderID  string
	Amount    int64
	PlacedAt  time.Time
}

// BidReceipt is returned to the caller on an accepted bid.
type BidReceipt struct {
	AuctionID     string    `json:"auction_id"`
	BidID         string    `json:"bid_id"`
	NewCurrentBid int64     `json:"new_current_bid"`
	NewEndTime    time.Time `json:"new_end_time"`
	Extended      bool      `json:"extended"`
}

// CloseResult is the frozen outcome of the one-time close transition.
// WinnerID is empty and WinningAmount zero for a no-bid close.
type CloseResult struct {
	AuctionID     string    `json:"auction_id"`
	WinnerID      string    `json:"winner_id,omitempty"`
	WinningAmount int64     `json:"winning_amount"`
	ClosedAt      time.Time `json:"closed_at"`
}

type PurchaseIntentStatus string

const (
	PurchasePending   PurchaseIntentStatus = "pending"
	PurchaseCompleted PurchaseIntentStatus = "completed"
	PurchaseFailed    PurchaseIntentStatus = "failed"
)

// PurchaseIntent lets the declared winner proceed to payment. At most one
// exists per auction, enforced by a unique key on AuctionID.
type PurchaseIntent struct {
	ID          string
	AuctionID   string
	BuyerID     string
	SellerID    string
	MachineID   string
	AmountCents int64
	Currency    string
	Status      PurchaseIntentStatus
	CreatedAt   time.Time
}

// AuctionSnapshot is the hot-read projection cached in redis. Best effort,
// the store stays the source of truth.
type AuctionSnapshot struct {
	AuctionID     string    `json:"auction_id"`
	CurrentBid    int64     `json:"current_bid"`
	CurrentBidBy  string    `json:"current_bid_by,omitempty"`
	EndTime       time.Time `json:"end_time"`
	Active        bool      `json:"active"`
	WinnerID      string    `json:"winner_id,omitempty"`
	WinningAmount int64     `json:"winning_amount,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func SnapshotOf(a *Auction) *AuctionSnapshot {
	return &AuctionSnapshot{
		AuctionID:     a.ID,
		CurrentBid:    a.CurrentBid,
		CurrentBidBy:  a.CurrentBidBy,
		EndTime:       a.EndTime,
		Active:        a.Active,
		WinnerID:      a.WinnerID,
		WinningAmount: a.WinningAmount,
		UpdatedAt:     a.UpdatedAt,
	}
}
