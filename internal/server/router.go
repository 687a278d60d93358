// Package server routes inbound frames to their per-kind handlers: room
// joins, opaque negotiation relays, chat broadcasts, and liveness echoes.
package server

import (
	"encoding/json"
	"log"
	"time"
)

// handleFrame parses and validates one inbound frame and dispatches it.
// Malformed input is reported to the sender only and never reaches other
// peers.
func (h *Hub) handleFrame(client *Client, rawMessage []byte) {
	var env Envelope
	if err := json.Unmarshal(rawMessage, &env); err != nil {
		log.Printf("Invalid message from %s: %v", client.addr, err)
		h.sendError(client, "invalid message: malformed JSON")
		return
	}

	if err := env.validate(); err != nil {
		log.Printf("Rejected %q message from %s: %v", env.Type, client.addr, err)
		h.sendError(client, err.Error())
		return
	}

	switch env.Type {
	case kindJoin:
		h.handleJoin(client, &env)
	case kindOffer, kindAnswer, kindICECandidate:
		h.handleRelay(client, &env)
	case kindChatMessage:
		h.handleChat(client, &env)
	case kindPing:
		h.sendToClient(client, h.marshalPayload(pongPayload{Type: kindPong}))
	}
}

// handleJoin moves the client into the requested room. A client already in
// another room leaves it first, and that room's remaining members get a
// departure notice. The joiner receives a membership confirmation; admins
// are announced to the whole room, while new viewers are announced to the
// room's admins only. Existing admins are deliberately not announced back to
// the new viewer.
func (h *Hub) handleJoin(client *Client, env *Envelope) {
	// The implicit leave applies only when the client is in a different
	// room; re-joining the current room must not produce a departure notice.
	if h.registry.RoomOf(client) != env.RoomID {
		if roomID, role, remaining, ok := h.registry.Leave(client); ok {
			h.deliver(remaining, h.marshalPayload(userLeftPayload{
				Type:    kindUserLeft,
				RoomID:  roomID,
				UserID:  client.id,
				IsAdmin: role == RoleAdmin,
			}), nil)
		}
	}

	count := h.registry.Join(client, env.RoomID, env.IsAdmin)
	role := RoleViewer
	if env.IsAdmin {
		role = RoleAdmin
	}
	log.Printf("Client %s joined room %q as %s (%d members)", client.id, env.RoomID, role, count)

	h.sendToClient(client, h.marshalPayload(joinedPayload{
		Type:        kindJoined,
		RoomID:      env.RoomID,
		ClientCount: count,
		ClientID:    client.id,
		IsAdmin:     env.IsAdmin,
	}))

	if env.IsAdmin {
		h.broadcastToRoom(env.RoomID, h.marshalPayload(adminJoinedPayload{
			Type:    kindAdminJoined,
			RoomID:  env.RoomID,
			AdminID: client.id,
		}), client)
	} else {
		h.notifyAdmins(env.RoomID, h.marshalPayload(viewerJoinedPayload{
			Type:     kindViewerJoined,
			RoomID:   env.RoomID,
			ViewerID: client.id,
		}), client)
	}
}

// handleRelay forwards a session negotiation payload to every other member
// of the room, tagged with the sender id. The payload itself is opaque to
// the server and is never inspected or rewritten; the sender never receives
// its own payload back.
func (h *Hub) handleRelay(client *Client, env *Envelope) {
	h.broadcastToRoom(env.RoomID, h.marshalPayload(relayPayload{
		Type:      env.Type,
		RoomID:    env.RoomID,
		SenderID:  client.id,
		Offer:     env.Offer,
		Answer:    env.Answer,
		Candidate: env.Candidate,
	}), client)
}

// handleChat enriches a chat message and broadcasts it to all room members,
// the sender included: clients render their own message only after server
// confirmation. Display name and avatar come from user data attached by the
// surrounding application when present, otherwise from the frame itself.
func (h *Hub) handleChat(client *Client, env *Envelope) {
	name, avatar := client.userData()
	if name == "" {
		name = env.Name
	}
	if avatar == "" {
		avatar = env.Avatar
	}

	timestamp := env.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	h.broadcastToRoom(env.RoomID, h.marshalPayload(chatMessagePayload{
		Type:      kindChatMessage,
		RoomID:    env.RoomID,
		SenderID:  client.id,
		Message:   env.Message,
		Name:      name,
		Avatar:    avatar,
		Timestamp: timestamp,
		IsStaff:   h.registry.RoleOf(client) == RoleAdmin,
	}), nil)
}

// sendError reports a problem with an inbound frame to its sender only.
func (h *Hub) sendError(client *Client, message string) {
	h.sendToClient(client, h.marshalPayload(errorPayload{
		Type:    kindError,
		Message: message,
	}))
}
