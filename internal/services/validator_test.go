package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-engine/internal/domain"
)

func activeAuction(startingPrice, increment, currentBid int64) *domain.Auction {
	now := time.Now()
	return &domain.Auction{
		ID:               "a1",
		SellerID:         "seller",
		StartingPrice:    startingPrice,
		MinimumIncrement: increment,
		CurrentBid:       currentBid,
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
		Active:           true,
	}
}

func TestValidateBid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(a *domain.Auction)
		amount  int64
		reason  domain.RejectReason
		minimum int64
	}{
		{
			name:   "first bid at starting price plus increment",
			amount: 1100,
		},
		{
			name:    "first bid at starting price is below minimum",
			amount:  1000,
			reason:  domain.RejectBelowMinimum,
			minimum: 1100,
		},
		{
			name:   "bid above current floor",
			mutate: func(a *domain.Auction) { a.CurrentBid = 1200 },
			amount: 1300,
		},
		{
			name:    "bid equal to current bid",
			mutate:  func(a *domain.Auction) { a.CurrentBid = 1200 },
			amount:  1200,
			reason:  domain.RejectBelowMinimum,
			minimum: 1300,
		},
		{
			name:   "closed auction",
			mutate: func(a *domain.Auction) { a.Active = false },
			amount: 5000,
			reason: domain.RejectNotActive,
		},
		{
			name:   "not started yet",
			mutate: func(a *domain.Auction) { a.StartTime = now.Add(time.Hour) },
			amount: 5000,
			reason: domain.RejectNotStarted,
		},
		{
			name:   "already past end time",
			mutate: func(a *domain.Auction) { a.EndTime = now.Add(-time.Minute) },
			amount: 5000,
			reason: domain.RejectEnded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := activeAuction(1000, 100, 0)
			if tt.mutate != nil {
				tt.mutate(a)
			}

			err := ValidateBid(a, tt.amount, now)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}

			rejection, ok := domain.IsRejection(err)
			require.True(t, ok, "expected a rejection, got %v", err)
			assert.Equal(t, tt.reason, rejection.Reason)
			if tt.minimum != 0 {
				assert.Equal(t, tt.minimum, rejection.Minimum)
			}
		})
	}
}

func TestValidateBidIsPure(t *testing.T) {
	a := activeAuction(1000, 100, 1200)
	before := *a

	for i := 0; i < 3; i++ {
		ValidateBid(a, 50, time.Now())
	}

	assert.Equal(t, before, *a, "validation must not mutate the snapshot")
}

func TestFloorUsesStartingPriceUntilOutbid(t *testing.T) {
	a := activeAuction(1000, 100, 0)
	assert.Equal(t, int64(1000), a.Floor())
	assert.Equal(t, int64(1100), a.MinimumNextBid())

	a.CurrentBid = 1200
	assert.Equal(t, int64(1200), a.Floor())
	assert.Equal(t, int64(1300), a.MinimumNextBid())

	// Degenerate data: a current bid below the starting price never lowers
	// the floor.
	a.CurrentBid = 500
	assert.Equal(t, int64(1000), a.Floor())
}
