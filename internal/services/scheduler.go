package services

import (
	"context"
	"sync"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/robfig/cron/v3"
)

// TimerClosureScheduler keeps one armed time.Timer per active auction. The
// in-memory map is never the source of truth: Resync re-derives every timer
// from the store's active flag and end time, on startup and on a periodic
// cron sweep, so a restart loses nothing. An auction whose deadline passed
// during downtime fires immediately (zero delay).
type TimerClosureScheduler struct {
	closer     domain.AuctionCloser
	auctions   domain.AuctionRepository
	leader     domain.LeaderElection
	instanceID string
	resync     time.Duration
	cron       *cron.Cron
	log        logger.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerClosureScheduler(
	closer domain.AuctionCloser,
	auctions domain.AuctionRepository,
	leader domain.LeaderElection,
	instanceID string,
	resyncInterval time.Duration,
	log logger.Logger,
) *TimerClosureScheduler {
	return &TimerClosureScheduler{
		closer:     closer,
		auctions:   auctions,
		leader:     leader,
		instanceID: instanceID,
		resync:     resyncInterval,
		cron:       cron.New(),
		log:        log,
		timers:     make(map[string]*time.Timer),
	}
}

func (s *TimerClosureScheduler) Start(ctx context.Context) error {
	s.log.Info("starting closure scheduler", "resync_interval", s.resync)

	if err := s.Resync(ctx); err != nil {
		return err
	}

	// Safety net behind the timers: pick up auctions created or extended by
	// other instances, and anything a missed fire left behind.
	_, err := s.cron.AddFunc("@every "+s.resync.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.resync)
		defer cancel()
		if err := s.Resync(ctx); err != nil {
			s.log.Error("scheduler resync failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *TimerClosureScheduler) Stop() error {
	s.log.Info("stopping closure scheduler")
	s.cron.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	return nil
}

// Resync arms a timer for every auction the store says is still active.
// Re-arming an unchanged deadline is a no-op in effect: the old timer is
// replaced by one firing at the same instant.
func (s *TimerClosureScheduler) Resync(ctx context.Context) error {
	auctions, err := s.auctions.GetActiveAuctions(ctx)
	if err != nil {
		return err
	}

	for _, a := range auctions {
		s.Arm(a.ID, a.EndTime)
	}

	s.log.Debug("scheduler resynced", "active_auctions", len(auctions))
	return nil
}

// Arm schedules the close for endTime, replacing any live timer for the
// auction. A deadline already in the past fires immediately.
func (s *TimerClosureScheduler) Arm(auctionID string, endTime time.Time) {
	delay := time.Until(endTime)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[auctionID]; ok {
		t.Stop()
	}
	s.timers[auctionID] = time.AfterFunc(delay, func() {
		s.fire(auctionID)
	})
}

func (s *TimerClosureScheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[auctionID]; ok {
		t.Stop()
		delete(s.timers, auctionID)
	}
}

func (s *TimerClosureScheduler) fire(auctionID string) {
	s.mu.Lock()
	delete(s.timers, auctionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Only the leader closes auctions; followers keep their timers as
	// standby and the resync sweep re-arms this one.
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("leadership check failed", "auction_id", auctionID, "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	// CloseExpired treats the fire as a hint: it re-checks state under the
	// per-auction lock, re-arms if extended, no-ops if already closed.
	if err := s.closer.CloseExpired(ctx, auctionID); err != nil {
		s.log.Error("auction close failed", "auction_id", auctionID, "error", err)
	}
}
