// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const writeWait = 10 * time.Second

// Client represents one WebSocket connection in the signaling system. It
// carries the connection's identity, its current room and role, the liveness
// flag read by the monitor, and the buffered channel the hub delivers
// outbound payloads through.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	id   string
	addr string

	// closed is guarded by the hub mutex, like membership in hub.clients.
	closed bool

	// room and role are guarded by the registry mutex; only the registry
	// mutates them.
	room string
	role Role

	// alive is cleared by the liveness monitor before each probe and set by
	// the pong handler; a connection still false at the next tick is evicted.
	alive atomic.Bool

	userMu sync.Mutex
	name   string
	avatar string

	maxMessageSize int64
	readWait       time.Duration
	limiter        *rate.Limiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client for the given WebSocket connection. Each client
// receives a process-unique id at accept time, a buffered send channel, and
// a token bucket sized from the active configuration.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	limit := rate.Limit(float64(cfg.RateLimit.Burst) / cfg.RateLimit.RefillInterval.Seconds())
	client := &Client{
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		id:             uuid.NewString(),
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		readWait:       3 * cfg.PingInterval,
		limiter:        rate.NewLimiter(limit, cfg.RateLimit.Burst),
		rateLimit:      cfg.RateLimit,
	}
	client.alive.Store(true)
	return client
}

// ID returns the process-unique identifier assigned at accept time.
func (c *Client) ID() string {
	return c.id
}

// SetUserData attaches a display name and avatar reference to the
// connection. It is intended to be called out-of-band by the surrounding
// application and is used only to enrich chat payloads.
func (c *Client) SetUserData(name, avatar string) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.name = name
	c.avatar = avatar
}

func (c *Client) userData() (name, avatar string) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	return c.name, c.avatar
}

// setupReadConnection configures the read deadline and the pong handler. The
// pong handler marks the connection alive for the liveness monitor and
// pushes the read deadline forward.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", c.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.addr, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.Allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message", c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// readPump consumes inbound frames for the connection's lifetime and hands
// them to the router. On exit (graceful close, transport failure, or a
// forced close by the liveness monitor) it runs the disconnect path, so
// registry cleanup and the departure broadcast happen before the goroutine
// ends.
func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump: %v", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		c.hub.handleFrame(c, rawMessage)
	}
}

// writePump drains the send channel onto the wire, one text frame per
// payload. Liveness pings come from the hub's monitor via WriteControl, not
// from this loop.
func (c *Client) writePump() {
	defer c.closeConnection()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.writeCloseMessage()
				return
			}
			if !c.writeTextMessage(message) {
				return
			}
		case <-c.hub.ctx.Done():
			c.writeCloseMessage()
			return
		}
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// writeCloseMessage sends a close frame to the client before the connection
// is torn down.
func (c *Client) writeCloseMessage() {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
}

// writeTextMessage writes a single payload as one text frame and returns
// false when the pump should stop.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}
