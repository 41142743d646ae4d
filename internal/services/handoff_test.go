package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

func wonAuction() *domain.Auction {
	return &domain.Auction{
		ID:            "a1",
		MachineID:     "m1",
		SellerID:      "seller",
		WinnerID:      "alice",
		WinningAmount: 1300,
		Active:        false,
		UpdatedAt:     time.Now(),
	}
}

func TestHandoffCreatesIntentOnce(t *testing.T) {
	intents := newMemIntentRepo()
	handoff := NewPurchaseHandoff(intents, "JOD", logger.NewNop())
	ctx := context.Background()

	first, err := handoff.CreateForAuction(ctx, wonAuction())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "alice", first.BuyerID)
	assert.Equal(t, "seller", first.SellerID)
	assert.Equal(t, "m1", first.MachineID)
	assert.Equal(t, int64(1300), first.AmountCents)
	assert.Equal(t, "JOD", first.Currency)
	assert.Equal(t, domain.PurchasePending, first.Status)

	// A retried close notification lands on the same intent.
	second, err := handoff.CreateForAuction(ctx, wonAuction())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, intents.count())
}

func TestHandoffSkipsNoBidClose(t *testing.T) {
	intents := newMemIntentRepo()
	handoff := NewPurchaseHandoff(intents, "JOD", logger.NewNop())

	auction := wonAuction()
	auction.WinnerID = ""
	auction.WinningAmount = 0

	intent, err := handoff.CreateForAuction(context.Background(), auction)
	require.NoError(t, err)
	assert.Nil(t, intent)
	assert.Zero(t, intents.count())
}

func TestHandoffAbsorbsCreationRace(t *testing.T) {
	intents := newMemIntentRepo()
	handoff := NewPurchaseHandoff(intents, "JOD", logger.NewNop())

	// Another writer commits between the existence check and the insert;
	// the duplicate-key error resolves to the committed intent.
	racing := &domain.PurchaseIntent{
		ID:          "intent-raced",
		AuctionID:   "a1",
		BuyerID:     "alice",
		SellerID:    "seller",
		MachineID:   "m1",
		AmountCents: 1300,
		Currency:    "JOD",
		Status:      domain.PurchasePending,
	}
	intents.mu.Lock()
	intents.raceOnCreate = racing
	intents.mu.Unlock()

	got, err := handoff.CreateForAuction(context.Background(), wonAuction())
	require.NoError(t, err)
	assert.Equal(t, "intent-raced", got.ID)
	assert.Equal(t, 1, intents.count())
}
