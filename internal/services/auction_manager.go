package services

import (
	"context"
	"errors"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/google/uuid"
)

// AuctionManager owns auction creation and the read surface. All writes
// after creation belong to the BidCoordinator.
type AuctionManager struct {
	auctions         domain.AuctionRepository
	bids             domain.BidRepository
	snapshots        domain.SnapshotCache
	scheduler        domain.ClosureScheduler
	defaultIncrement int64
	log              logger.Logger
}

func NewAuctionManager(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	snapshots domain.SnapshotCache,
	defaultIncrement int64,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		auctions:         auctions,
		bids:             bids,
		snapshots:        snapshots,
		defaultIncrement: defaultIncrement,
		log:              log,
	}
}

func (m *AuctionManager) SetScheduler(scheduler domain.ClosureScheduler) {
	m.scheduler = scheduler
}

type CreateAuctionParams struct {
	MachineID        string
	SellerID         string
	StartingPrice    int64
	MinimumIncrement int64
	StartTime        time.Time
	EndTime          time.Time
}

var (
	ErrMissingFields = errors.New("machine id and seller id are required")
	ErrBadTimeWindow = errors.New("end time must come after start time")
	ErrBadPrice      = errors.New("starting price must not be negative")
)

func (m *AuctionManager) CreateAuction(ctx context.Context, p CreateAuctionParams) (*domain.Auction, error) {
	if p.MachineID == "" || p.SellerID == "" {
		return nil, ErrMissingFields
	}
	if p.StartingPrice < 0 {
		return nil, ErrBadPrice
	}

	now := time.Now()
	if p.StartTime.IsZero() {
		p.StartTime = now
	}
	if !p.EndTime.After(p.StartTime) {
		return nil, ErrBadTimeWindow
	}
	if p.MinimumIncrement <= 0 {
		p.MinimumIncrement = m.defaultIncrement
	}

	auction := &domain.Auction{
		ID:               uuid.NewString(),
		MachineID:        p.MachineID,
		SellerID:         p.SellerID,
		StartingPrice:    p.StartingPrice,
		MinimumIncrement: p.MinimumIncrement,
		CurrentBid:       0,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		Active:           true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := m.auctions.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if m.scheduler != nil {
		m.scheduler.Arm(auction.ID, auction.EndTime)
	}

	if m.snapshots != nil {
		if err := m.snapshots.SetSnapshot(ctx, domain.SnapshotOf(auction)); err != nil {
			m.log.Warn("snapshot cache seed failed", "auction_id", auction.ID, "error", err)
		}
	}

	m.log.Info("auction created",
		"auction_id", auction.ID, "machine_id", auction.MachineID,
		"seller_id", auction.SellerID, "end_time", auction.EndTime)

	return auction, nil
}

func (m *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return m.auctions.GetAuction(ctx, auctionID)
}

// GetSnapshot serves the polling read path from the cache, falling back
// to the store on a miss. The snapshot may trail the store by a beat.
func (m *AuctionManager) GetSnapshot(ctx context.Context, auctionID string) (*domain.AuctionSnapshot, error) {
	if m.snapshots != nil {
		if snap, err := m.snapshots.GetSnapshot(ctx, auctionID); err == nil {
			return snap, nil
		}
	}

	auction, err := m.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return domain.SnapshotOf(auction), nil
}

func (m *AuctionManager) ListLiveAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return m.auctions.GetActiveAuctions(ctx)
}

// ListBids returns the ledger for one auction, ordered by submission time.
func (m *AuctionManager) ListBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	if _, err := m.auctions.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return m.bids.ListByAuction(ctx, auctionID)
}
