package handlers

import (
	"errors"
	"net/http"

	"auction-engine/internal/domain"
	ws "auction-engine/internal/infrastructure/websocket"
	"auction-engine/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades watchers of one auction into fan-out
// subscribers. Subscribers only listen; bids go through the HTTP API, and
// a reconnecting client re-fetches the auction to reconcile.
type WebSocketHandler struct {
	auctions    domain.AuctionRepository
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(auctions domain.AuctionRepository, connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		auctions:    auctions,
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) Subscribe(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.auctions.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "auction not found"})
		}
		h.log.Error("failed to load auction for subscription", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "try again"})
	}
	if !auction.Active {
		return c.JSON(http.StatusGone, map[string]string{"error": "auction already closed"})
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id required"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "auction_id", auctionID, "error", err)
		return nil
	}

	sub := ws.NewConnection(conn, userID, auctionID, h.log)
	if err := h.connManager.RegisterSubscriber(userID, auctionID, sub); err != nil {
		h.log.Error("failed to register subscriber", "auction_id", auctionID, "error", err)
		sub.Close()
		return nil
	}

	go h.readUntilClosed(conn, sub, userID, auctionID)
	return nil
}

// readUntilClosed drains the client side of the socket. Incoming frames are
// ignored except for keeping the connection alive; a read error means the
// subscriber left.
func (h *WebSocketHandler) readUntilClosed(conn *websocket.Conn, sub *ws.Connection, userID, auctionID string) {
	defer func() {
		h.connManager.UnregisterSubscriber(userID, auctionID)
		sub.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
