package services

import (
	"context"
	"sync"
	"time"

	"auction-engine/internal/domain"
)

// In-memory stand-ins for the mysql repositories, with the same CAS
// semantics on the auction version.

type memAuctionRepo struct {
	mu             sync.Mutex
	auctions       map[string]*domain.Auction
	bids           map[string][]*domain.Bid
	forceConflicts int
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]*domain.Bid),
	}
}

func copyAuction(a *domain.Auction) *domain.Auction {
	cp := *a
	return &cp
}

func (m *memAuctionRepo) CreateAuction(_ context.Context, auction *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[auction.ID] = copyAuction(auction)
	return nil
}

func (m *memAuctionRepo) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return copyAuction(stored), nil
}

func (m *memAuctionRepo) GetActiveAuctions(_ context.Context) ([]*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []*domain.Auction
	for _, a := range m.auctions {
		if a.Active {
			active = append(active, copyAuction(a))
		}
	}
	return active, nil
}

func (m *memAuctionRepo) save(auction *domain.Auction) error {
	stored, ok := m.auctions[auction.ID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if m.forceConflicts > 0 {
		m.forceConflicts--
		return domain.ErrVersionConflict
	}
	if stored.Version != auction.Version {
		return domain.ErrVersionConflict
	}
	cp := copyAuction(auction)
	cp.Version++
	m.auctions[auction.ID] = cp
	auction.Version++
	return nil
}

func (m *memAuctionRepo) SaveAuction(_ context.Context, auction *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(auction)
}

func (m *memAuctionRepo) SaveBidAndAuction(_ context.Context, auction *domain.Auction, bid *domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.save(auction); err != nil {
		return err
	}
	cp := *bid
	m.bids[auction.ID] = append(m.bids[auction.ID], &cp)
	return nil
}

func (m *memAuctionRepo) ListByAuction(_ context.Context, auctionID string) ([]*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bids := make([]*domain.Bid, len(m.bids[auctionID]))
	copy(bids, m.bids[auctionID])
	return bids, nil
}

func (m *memAuctionRepo) bidCount(auctionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids[auctionID])
}

type memIntentRepo struct {
	mu      sync.Mutex
	intents map[string]*domain.PurchaseIntent // keyed by auction id
	creates int
	// raceOnCreate simulates a concurrent writer sneaking in between the
	// existence check and the insert.
	raceOnCreate *domain.PurchaseIntent
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{intents: make(map[string]*domain.PurchaseIntent)}
}

func (m *memIntentRepo) Create(_ context.Context, intent *domain.PurchaseIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnCreate != nil {
		m.intents[m.raceOnCreate.AuctionID] = m.raceOnCreate
		m.raceOnCreate = nil
	}
	if _, exists := m.intents[intent.AuctionID]; exists {
		return domain.ErrIntentExists
	}
	cp := *intent
	m.intents[intent.AuctionID] = &cp
	m.creates++
	return nil
}

func (m *memIntentRepo) GetByAuction(_ context.Context, auctionID string) (*domain.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[auctionID]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	cp := *intent
	return &cp, nil
}

func (m *memIntentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intents)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
}

func (p *capturePublisher) PublishAuctionEvent(_ context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *event
	p.events = append(p.events, &cp)
	return nil
}

func (p *capturePublisher) byType(t domain.AuctionEventType) []*domain.AuctionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.AuctionEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type stubScheduler struct {
	mu      sync.Mutex
	armed   map[string]time.Time
	cancels []string
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{armed: make(map[string]time.Time)}
}

func (s *stubScheduler) Arm(auctionID string, endTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[auctionID] = endTime
}

func (s *stubScheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, auctionID)
	s.cancels = append(s.cancels, auctionID)
}

func (s *stubScheduler) Start(context.Context) error { return nil }
func (s *stubScheduler) Stop() error                 { return nil }

func (s *stubScheduler) cancelledIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancels...)
}

func (s *stubScheduler) armedAt(auctionID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.armed[auctionID]
	return t, ok
}
