package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/google/uuid"
)

// BidCoordinator serializes all mutation to a given auction behind one
// mutex per auction id, so bids and closure never interleave on the same
// auction while distinct auctions proceed fully in parallel. The store's
// version CAS backs this up against writers outside this process.
type BidCoordinator struct {
	auctions  domain.AuctionRepository
	publisher domain.EventPublisher
	snapshots domain.SnapshotCache
	handoff   *PurchaseHandoff
	scheduler domain.ClosureScheduler
	window    time.Duration
	log       logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewBidCoordinator(
	auctions domain.AuctionRepository,
	publisher domain.EventPublisher,
	snapshots domain.SnapshotCache,
	handoff *PurchaseHandoff,
	antiSnipeWindow time.Duration,
	log logger.Logger,
) *BidCoordinator {
	return &BidCoordinator{
		auctions:  auctions,
		publisher: publisher,
		snapshots: snapshots,
		handoff:   handoff,
		window:    antiSnipeWindow,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetScheduler breaks the coordinator/scheduler construction cycle: the
// scheduler needs the coordinator to close auctions, the coordinator needs
// the scheduler to re-arm after extensions.
func (c *BidCoordinator) SetScheduler(s domain.ClosureScheduler) {
	c.scheduler = s
}

func (c *BidCoordinator) lockFor(auctionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[auctionID] = l
	}
	return l
}

// retireLock drops the per-auction mutex once the auction is closed. A
// goroutine still queued on the old mutex re-reads state under it and sees
// active=false, so a fresh mutex handed to later callers cannot race it
// into a second mutation.
func (c *BidCoordinator) retireLock(auctionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, auctionID)
}

// PlaceBid runs read -> validate -> append -> update -> maybe extend as one
// atomic unit for the auction. Rejections come back as *BidRejectedError;
// anything else is a system error the caller may retry.
func (c *BidCoordinator) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64) (*domain.BidReceipt, error) {
	lock := c.lockFor(auctionID)
	lock.Lock()
	defer lock.Unlock()

	// One internal retry on a CAS conflict: re-read the winner's state and
	// re-validate before surfacing anything.
	for attempt := 0; ; attempt++ {
		auction, err := c.auctions.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		if err := ValidateBid(auction, amount, now); err != nil {
			return nil, err
		}

		extended := false
		if auction.EndTime.Sub(now) <= c.window {
			// Push the deadline by exactly the window, measured from the
			// current end time. Never earlier, never twice for one bid.
			auction.EndTime = auction.EndTime.Add(c.window)
			extended = true
		}

		auction.CurrentBid = amount
		auction.CurrentBidBy = bidderID
		auction.UpdatedAt = now

		bid := &domain.Bid{
			ID:        uuid.NewString(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			PlacedAt:  now,
		}

		if err := c.auctions.SaveBidAndAuction(ctx, auction, bid); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) && attempt == 0 {
				continue
			}
			return nil, err
		}

		if extended && c.scheduler != nil {
			c.scheduler.Arm(auction.ID, auction.EndTime)
		}

		c.afterMutation(auction, &domain.AuctionEvent{
			Type:      domain.EventBidAccepted,
			AuctionID: auction.ID,
			BidderID:  bidderID,
			Amount:    amount,
			EndTime:   auction.EndTime,
			Extended:  extended,
			Timestamp: now,
		})

		c.log.Info("bid accepted",
			"auction_id", auction.ID, "bidder_id", bidderID,
			"amount", amount, "extended", extended)

		return &domain.BidReceipt{
			AuctionID:     auction.ID,
			BidID:         bid.ID,
			NewCurrentBid: amount,
			NewEndTime:    auction.EndTime,
			Extended:      extended,
		}, nil
	}
}

// CloseExpired is the timer path. The fire is only a hint: if an extension
// moved the deadline since the timer was armed, re-arm and do nothing; if
// the auction is already closed, do nothing.
func (c *BidCoordinator) CloseExpired(ctx context.Context, auctionID string) error {
	lock := c.lockFor(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := c.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	if !auction.Active {
		return nil
	}
	if now := time.Now(); now.Before(auction.EndTime) {
		if c.scheduler != nil {
			c.scheduler.Arm(auction.ID, auction.EndTime)
		}
		return nil
	}

	_, err = c.close(ctx, auction)
	return err
}

// CloseManually is the seller/admin path. On an already-closed auction it
// returns the frozen result alongside ErrAlreadyClosed so the caller can
// show the committed outcome.
func (c *BidCoordinator) CloseManually(ctx context.Context, auctionID, requesterID string, admin bool) (*domain.CloseResult, error) {
	lock := c.lockFor(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := c.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if requesterID != auction.SellerID && !admin {
		return nil, domain.ErrUnauthorized
	}
	if !auction.Active {
		return &domain.CloseResult{
			AuctionID:     auction.ID,
			WinnerID:      auction.WinnerID,
			WinningAmount: auction.WinningAmount,
			ClosedAt:      auction.UpdatedAt,
		}, domain.ErrAlreadyClosed
	}

	return c.close(ctx, auction)
}

// close is the single winner-assignment path shared by the timer and the
// manual trigger. Caller holds the per-auction lock and has verified
// auction.Active.
func (c *BidCoordinator) close(ctx context.Context, auction *domain.Auction) (*domain.CloseResult, error) {
	now := time.Now()
	auction.Active = false
	auction.WinnerID = auction.CurrentBidBy
	auction.WinningAmount = auction.CurrentBid
	auction.UpdatedAt = now

	if err := c.auctions.SaveAuction(ctx, auction); err != nil {
		// Roll back the in-memory flip so a retry starts clean.
		auction.Active = true
		auction.WinnerID = ""
		auction.WinningAmount = 0
		return nil, err
	}

	if c.scheduler != nil {
		c.scheduler.Cancel(auction.ID)
	}

	result := &domain.CloseResult{
		AuctionID:     auction.ID,
		WinnerID:      auction.WinnerID,
		WinningAmount: auction.WinningAmount,
		ClosedAt:      now,
	}

	if auction.WinnerID != "" {
		// The close is already committed; a handoff failure must not undo
		// it. The handoff is idempotent, so a later retry is safe.
		if _, err := c.handoff.CreateForAuction(ctx, auction); err != nil {
			c.log.Error("purchase handoff failed",
				"auction_id", auction.ID, "winner_id", auction.WinnerID, "error", err)
		}
	}

	c.afterMutation(auction, &domain.AuctionEvent{
		Type:          domain.EventAuctionClosed,
		AuctionID:     auction.ID,
		EndTime:       auction.EndTime,
		WinnerID:      auction.WinnerID,
		WinningAmount: auction.WinningAmount,
		Timestamp:     now,
	})

	c.retireLock(auction.ID)

	c.log.Info("auction closed",
		"auction_id", auction.ID, "winner_id", auction.WinnerID,
		"winning_amount", auction.WinningAmount)

	return result, nil
}

// afterMutation pushes the snapshot cache and the event bus off the hot
// path. Both are best effort: fan-out and caching never block or fail a
// committed state change.
func (c *BidCoordinator) afterMutation(auction *domain.Auction, event *domain.AuctionEvent) {
	snapshot := domain.SnapshotOf(auction)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if c.snapshots != nil {
			if err := c.snapshots.SetSnapshot(ctx, snapshot); err != nil {
				c.log.Warn("snapshot cache update failed", "auction_id", snapshot.AuctionID, "error", err)
			}
		}
		if c.publisher != nil {
			if err := c.publisher.PublishAuctionEvent(ctx, event); err != nil {
				c.log.Warn("event publish failed", "auction_id", event.AuctionID, "type", event.Type, "error", err)
			}
		}
	}()
}
