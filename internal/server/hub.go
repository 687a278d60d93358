// Package server coordinates client registration, room broadcasts, and
// connection cleanup for the GoCast signaling system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub owns the set of open connections and the room registry. It serializes
// registration and unregistration through its event loop, fans payloads out
// to room members, and runs the liveness monitor that evicts unresponsive
// connections.
type Hub struct {
	clients    map[*Client]bool
	registry   *Registry
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with an empty room
// registry. The returned Hub is ready to manage WebSocket connections once
// Run and RunLivenessMonitor are started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		registry:   NewRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the hub's room registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// registerClient hands a new client to the hub loop. When the hub has
// already shut down the connection is closed instead, so an upgrade racing
// shutdown never blocks its handler goroutine.
func (h *Hub) registerClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		if client != nil && client.conn != nil {
			_ = client.conn.Close()
		}
	}
}

// ConnectionCount returns the number of currently registered connections.
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms that currently have members.
func (h *Hub) RoomCount() int {
	return h.registry.RoomCount()
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// handleDisconnect runs the common teardown path for every way a connection
// ends: registry cleanup, the departure notice to remaining room members,
// then unregistration from the hub.
func (h *Hub) handleDisconnect(client *Client) {
	roomID, role, remaining, ok := h.registry.Leave(client)
	if ok {
		log.Printf("Client %s left room %q (%s)", client.id, roomID, role)
		h.deliver(remaining, h.marshalPayload(userLeftPayload{
			Type:    kindUserLeft,
			RoomID:  roomID,
			UserID:  client.id,
			IsAdmin: role == RoleAdmin,
		}), nil)
	}

	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// safeSend enqueues a payload on one client without blocking. It reports
// false when the client is gone or its buffer is full; the caller decides
// whether that recipient should be pruned.
func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// deliver fans a payload out to the given members, skipping exclude. A
// failed delivery to one member never aborts delivery to the rest; failed
// members are pruned from the hub afterwards.
func (h *Hub) deliver(members []*Client, payload []byte, exclude *Client) {
	if payload == nil {
		return
	}

	var failed []*Client
	for _, member := range members {
		if member == exclude {
			continue
		}
		if !h.safeSend(member, payload) {
			failed = append(failed, member)
		}
	}
	h.removeFailedClients(failed)
}

// broadcastToRoom delivers a payload to every member of the room except
// exclude, using a membership snapshot taken at the moment of fan-out.
func (h *Hub) broadcastToRoom(roomID string, payload []byte, exclude *Client) {
	h.deliver(h.registry.Members(roomID), payload, exclude)
}

// notifyAdmins delivers a payload to the room's admin members only.
func (h *Hub) notifyAdmins(roomID string, payload []byte, exclude *Client) {
	h.deliver(h.registry.Admins(roomID), payload, exclude)
}

// sendToClient delivers a payload to a single client, pruning it on failure.
func (h *Hub) sendToClient(client *Client, payload []byte) {
	if payload == nil {
		return
	}
	if !h.safeSend(client, payload) {
		h.removeFailedClients([]*Client{client})
	}
}

func (h *Hub) marshalPayload(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling %T payload: %v", payload, err)
		return nil
	}
	return data
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// RunLivenessMonitor probes all open connections on a fixed interval and
// forcibly closes the ones that did not answer the previous probe. A
// connection must miss one full cycle before eviction, so a single slow
// round trip never triggers a false positive. This method should be called
// in a separate goroutine; it runs until Shutdown.
func (h *Hub) RunLivenessMonitor() {
	interval := currentConfig().PingInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sweepConnections()
		}
	}
}

// sweepConnections runs one probe cycle: evict connections that stayed
// silent since the previous cycle, then mark the rest pending and ping them.
func (h *Hub) sweepConnections() {
	for _, client := range h.getClientSnapshot() {
		if client.conn == nil {
			continue
		}
		if !client.alive.Load() {
			log.Printf("Client %s from %s missed liveness probe; closing connection", client.id, client.addr)
			// Closing the transport drives the normal disconnect path in
			// the client's readPump: registry leave plus departure notice.
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing unresponsive connection from %s: %v", client.addr, err)
			}
			continue
		}

		client.alive.Store(false)
		// WriteControl is documented safe to call concurrently with the
		// client's write pump.
		if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing ping to %s: %v", client.addr, err)
			}
		}
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.getClientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown; this also stops the liveness monitor.
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
