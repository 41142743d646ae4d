package handlers

import (
	"errors"
	"net/http"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	manager     *services.AuctionManager
	coordinator *services.BidCoordinator
	log         logger.Logger
}

func NewAuctionHandler(manager *services.AuctionManager, coordinator *services.BidCoordinator, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		manager:     manager,
		coordinator: coordinator,
		log:         log,
	}
}

type CreateAuctionRequest struct {
	MachineID        string    `json:"machine_id"`
	SellerID         string    `json:"seller_id"`
	StartingPrice    int64     `json:"starting_price"`
	MinimumIncrement int64     `json:"minimum_increment"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
}

type AuctionResponse struct {
	AuctionID        string    `json:"auction_id"`
	MachineID        string    `json:"machine_id"`
	SellerID         string    `json:"seller_id"`
	StartingPrice    int64     `json:"starting_price"`
	MinimumIncrement int64     `json:"minimum_increment"`
	CurrentBid       int64     `json:"current_bid"`
	CurrentBidBy     string    `json:"current_bid_by,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Status           string    `json:"status"`
	WinnerID         string    `json:"winner_id,omitempty"`
	WinningAmount    int64     `json:"winning_amount,omitempty"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:        a.ID,
		MachineID:        a.MachineID,
		SellerID:         a.SellerID,
		StartingPrice:    a.StartingPrice,
		MinimumIncrement: a.MinimumIncrement,
		CurrentBid:       a.CurrentBid,
		CurrentBidBy:     a.CurrentBidBy,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Status:           a.Status(time.Now()).String(),
		WinnerID:         a.WinnerID,
		WinningAmount:    a.WinningAmount,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	auction, err := h.manager.CreateAuction(c.Request().Context(), services.CreateAuctionParams{
		MachineID:        req.MachineID,
		SellerID:         req.SellerID,
		StartingPrice:    req.StartingPrice,
		MinimumIncrement: req.MinimumIncrement,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields),
			errors.Is(err, services.ErrBadTimeWindow),
			errors.Is(err, services.ErrBadPrice):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.log.Error("failed to create auction", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create auction"})
		}
	}

	return c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.manager.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		}
		h.log.Error("failed to load auction", "auction_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "try again"})
	}

	return c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) GetSnapshot(c echo.Context) error {
	snapshot, err := h.manager.GetSnapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		}
		h.log.Error("failed to load snapshot", "auction_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "try again"})
	}

	return c.JSON(http.StatusOK, snapshot)
}

func (h *AuctionHandler) ListLiveAuctions(c echo.Context) error {
	auctions, err := h.manager.ListLiveAuctions(c.Request().Context())
	if err != nil {
		h.log.Error("failed to list live auctions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "try again"})
	}

	responses := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		responses = append(responses, toAuctionResponse(a))
	}
	return c.JSON(http.StatusOK, responses)
}

type PlaceBidRequest struct {
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	auctionID := c.Param("id")

	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.BidderID == "" || req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bidder_id and a positive amount are required"})
	}

	receipt, err := h.coordinator.PlaceBid(c.Request().Context(), auctionID, req.BidderID, req.Amount)
	if err != nil {
		if rejection, ok := domain.IsRejection(err); ok {
			body := map[string]interface{}{
				"error":  rejection.Error(),
				"reason": string(rejection.Reason),
			}
			if rejection.Reason == domain.RejectBelowMinimum {
				body["minimum"] = rejection.Minimum
			}
			return c.JSON(http.StatusBadRequest, body)
		}
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		}
		// Persistence trouble or a lost race after retry: retryable, no
		// internals leaked.
		h.log.Error("failed to place bid", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "try again"})
	}

	return c.JSON(http.StatusOK, receipt)
}

type CloseAuctionRequest struct {
	RequesterID string `json:"requester_id"`
	Admin       bool   `json:"admin"`
}

func (h *AuctionHandler) CloseAuction(c echo.Context) error {
	auctionID := c.Param("id")

	var req CloseAuctionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.RequesterID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "requester_id is required"})
	}

	result, err := h.coordinator.CloseManually(c.Request().Context(), auctionID, req.RequesterID, req.Admin)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			return c.JSON(http.StatusForbidden, map[string]string{"error": "not allowed to close this auction"})
		case errors.Is(err, domain.ErrAlreadyClosed):
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error":  "auction already closed",
				"result": result,
			})
		case errors.Is(err, domain.ErrAuctionNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		default:
			h.log.Error("failed to close auction", "auction_id", auctionID, "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "try again"})
		}
	}

	return c.JSON(http.StatusOK, result)
}

type BidResponse struct {
	BidID    string    `json:"bid_id"`
	BidderID string    `json:"bidder_id"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

func (h *AuctionHandler) ListBids(c echo.Context) error {
	auctionID := c.Param("id")

	bids, err := h.manager.ListBids(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		}
		h.log.Error("failed to list bids", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "try again"})
	}

	responses := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		responses = append(responses, BidResponse{
			BidID:    b.ID,
			BidderID: b.BidderID,
			Amount:   b.Amount,
			PlacedAt: b.PlacedAt,
		})
	}
	return c.JSON(http.StatusOK, responses)
}
