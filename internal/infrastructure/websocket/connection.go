package websocket

import (
	"errors"
	"sync"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/gorilla/websocket"
)

// Send buffer per subscriber. A subscriber that falls this far behind gets
// events dropped rather than stalling the broadcaster; delivery is
// at-most-once and clients reconcile with a re-fetch on reconnect.
const sendBufferSize = 16

var errSubscriberGone = errors.New("subscriber closed or too slow")

// Connection wraps one websocket subscriber with a buffered writer so
// broadcasts never block on a slow peer.
type Connection struct {
	ws        *websocket.Conn
	userID    string
	auctionID string
	send      chan *domain.AuctionEvent
	log       logger.Logger

	mu     sync.Mutex
	closed bool
}

func NewConnection(ws *websocket.Conn, userID, auctionID string, log logger.Logger) *Connection {
	c := &Connection{
		ws:        ws,
		userID:    userID,
		auctionID: auctionID,
		send:      make(chan *domain.AuctionEvent, sendBufferSize),
		log:       log,
	}
	go c.writePump()
	return c
}

func (c *Connection) Send(event *domain.AuctionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errSubscriberGone
	}

	select {
	case c.send <- event:
		return nil
	default:
		return errSubscriberGone
	}
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *Connection) UserID() string {
	return c.userID
}

func (c *Connection) AuctionID() string {
	return c.auctionID
}

func (c *Connection) writePump() {
	for event := range c.send {
		if err := c.ws.WriteJSON(event); err != nil {
			c.log.Debug("subscriber write failed",
				"user_id", c.userID, "auction_id", c.auctionID, "error", err)
			return
		}
	}
}
