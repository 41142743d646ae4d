package services

import (
	"context"
	"errors"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/google/uuid"
)

// PurchaseHandoff creates the downstream purchase intent for a won auction.
// Idempotent on auction id: the scheduler firing twice, or a retried close
// notification, always lands on the same intent.
type PurchaseHandoff struct {
	intents  domain.PurchaseIntentRepository
	currency string
	log      logger.Logger
}

func NewPurchaseHandoff(intents domain.PurchaseIntentRepository, currency string, log logger.Logger) *PurchaseHandoff {
	return &PurchaseHandoff{
		intents:  intents,
		currency: currency,
		log:      log,
	}
}

// CreateForAuction returns the intent for the auction, creating it if this
// is the first call. A no-winner close creates nothing and returns nil.
func (h *PurchaseHandoff) CreateForAuction(ctx context.Context, auction *domain.Auction) (*domain.PurchaseIntent, error) {
	if auction.WinnerID == "" {
		return nil, nil
	}

	existing, err := h.intents.GetByAuction(ctx, auction.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrIntentNotFound) {
		return nil, err
	}

	intent := &domain.PurchaseIntent{
		ID:          uuid.NewString(),
		AuctionID:   auction.ID,
		BuyerID:     auction.WinnerID,
		SellerID:    auction.SellerID,
		MachineID:   auction.MachineID,
		AmountCents: auction.WinningAmount,
		Currency:    h.currency,
		Status:      domain.PurchasePending,
		CreatedAt:   time.Now(),
	}

	if err := h.intents.Create(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrIntentExists) {
			// Lost a creation race; the committed one wins.
			return h.intents.GetByAuction(ctx, auction.ID)
		}
		return nil, err
	}

	h.log.Info("purchase intent created",
		"auction_id", auction.ID, "buyer_id", intent.BuyerID,
		"amount_cents", intent.AmountCents, "currency", intent.Currency)

	return intent, nil
}
