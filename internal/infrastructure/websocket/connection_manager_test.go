package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

type fakeSubscriber struct {
	mu        sync.Mutex
	userID    string
	auctionID string
	events    []*domain.AuctionEvent
	closed    bool
	sendErr   error
}

func (s *fakeSubscriber) Send(event *domain.AuctionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSubscriber) UserID() string    { return s.userID }
func (s *fakeSubscriber) AuctionID() string { return s.auctionID }

func (s *fakeSubscriber) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *fakeSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func bidEvent(auctionID string) *domain.AuctionEvent {
	return &domain.AuctionEvent{
		Type:      domain.EventBidAccepted,
		AuctionID: auctionID,
		BidderID:  "alice",
		Amount:    1300,
		Timestamp: time.Now(),
	}
}

func TestBroadcastReachesOnlyWatchersOfThatAuction(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	watcherA := &fakeSubscriber{userID: "u1", auctionID: "a1"}
	watcherB := &fakeSubscriber{userID: "u2", auctionID: "a1"}
	other := &fakeSubscriber{userID: "u3", auctionID: "a2"}

	require.NoError(t, cm.RegisterSubscriber("u1", "a1", watcherA))
	require.NoError(t, cm.RegisterSubscriber("u2", "a1", watcherB))
	require.NoError(t, cm.RegisterSubscriber("u3", "a2", other))

	cm.BroadcastToAuction("a1", bidEvent("a1"))

	assert.Equal(t, 1, watcherA.received())
	assert.Equal(t, 1, watcherB.received())
	assert.Zero(t, other.received())
}

func TestUnregisteredSubscriberGetsNothing(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	sub := &fakeSubscriber{userID: "u1", auctionID: "a1"}
	require.NoError(t, cm.RegisterSubscriber("u1", "a1", sub))
	require.NoError(t, cm.UnregisterSubscriber("u1", "a1"))

	cm.BroadcastToAuction("a1", bidEvent("a1"))
	assert.Zero(t, sub.received())
}

func TestFailedSendIsDroppedNotRetried(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	slow := &fakeSubscriber{userID: "u1", auctionID: "a1", sendErr: errSubscriberGone}
	healthy := &fakeSubscriber{userID: "u2", auctionID: "a1"}

	require.NoError(t, cm.RegisterSubscriber("u1", "a1", slow))
	require.NoError(t, cm.RegisterSubscriber("u2", "a1", healthy))

	cm.BroadcastToAuction("a1", bidEvent("a1"))

	assert.Zero(t, slow.received(), "at-most-once: no retry for a failed delivery")
	assert.Equal(t, 1, healthy.received(), "one bad subscriber never blocks the rest")
}

func TestReconnectReplacesPreviousSubscription(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	old := &fakeSubscriber{userID: "u1", auctionID: "a1"}
	require.NoError(t, cm.RegisterSubscriber("u1", "a1", old))

	fresh := &fakeSubscriber{userID: "u1", auctionID: "a1"}
	require.NoError(t, cm.RegisterSubscriber("u1", "a1", fresh))

	assert.True(t, old.isClosed())

	cm.BroadcastToAuction("a1", bidEvent("a1"))
	assert.Zero(t, old.received())
	assert.Equal(t, 1, fresh.received())
}

func TestCloseAuctionDisconnectsEveryone(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	subs := []*fakeSubscriber{
		{userID: "u1", auctionID: "a1"},
		{userID: "u2", auctionID: "a1"},
	}
	for _, s := range subs {
		require.NoError(t, cm.RegisterSubscriber(s.userID, "a1", s))
	}

	require.NoError(t, cm.CloseAuction("a1"))

	for _, s := range subs {
		assert.True(t, s.isClosed())
	}

	// Nothing left to deliver to.
	cm.BroadcastToAuction("a1", bidEvent("a1"))
	for _, s := range subs {
		assert.Zero(t, s.received())
	}
}
