package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	GetActiveAuctions(ctx context.Context) ([]*Auction, error)

	// SaveAuction persists the auction with a compare-and-swap on Version;
	// ErrVersionConflict when another writer got there first. On success the
	// in-memory Version is bumped to match the store.
	SaveAuction(ctx context.Context, auction *Auction) error

	// SaveBidAndAuction commits the ledger append and the auction update in
	// one transaction, same CAS semantics as SaveAuction. Either both land
	// or neither does.
	SaveBidAndAuction(ctx context.Context, auction *Auction, bid *Bid) error
}

type BidRepository interface {
	ListByAuction(ctx context.Context, auctionID string) ([]*Bid, error)
}

type PurchaseIntentRepository interface {
	// Create returns ErrIntentExists when an intent for the same auction is
	// already persisted (unique key).
	Create(ctx context.Context, intent *PurchaseIntent) error
	GetByAuction(ctx context.Context, auctionID string) (*PurchaseIntent, error)
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventHandler func(event *AuctionEvent) error

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

// Cache interface
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snapshot *AuctionSnapshot) error
	GetSnapshot(ctx context.Context, auctionID string) (*AuctionSnapshot, error)
}

// Scheduler interface. Arm replaces any live timer for the auction, so
// there is never more than one.
type ClosureScheduler interface {
	Arm(auctionID string, endTime time.Time)
	Cancel(auctionID string)
	Start(ctx context.Context) error
	Stop() error
}

// AuctionCloser is what a firing timer invokes. The fire is a hint to
// re-check state; the closer re-arms if the deadline moved and no-ops if
// the auction is already closed.
type AuctionCloser interface {
	CloseExpired(ctx context.Context, auctionID string) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Fan-out interfaces
type Subscriber interface {
	Send(event *AuctionEvent) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterSubscriber(userID, auctionID string, sub Subscriber) error
	UnregisterSubscriber(userID, auctionID string) error
	BroadcastToAuction(auctionID string, event *AuctionEvent)
	CloseAuction(auctionID string) error
}
