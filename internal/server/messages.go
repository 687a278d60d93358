// Package server defines the JSON message envelope exchanged with clients,
// per-kind validation rules, and the outbound payload types built by the
// router and hub.
package server

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies how a connection joined its room. It is self-declared by
// the joining client; the server performs no verification at this layer.
type Role string

// Roles a connection can hold inside a room.
const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

// Message kinds understood by the router (client to server) and emitted by
// the server (server to client). Both directions share the same "type"
// discriminator field.
const (
	kindJoin         = "join"
	kindOffer        = "offer"
	kindAnswer       = "answer"
	kindICECandidate = "ice-candidate"
	kindChatMessage  = "chat-message"
	kindPing         = "ping"
	kindPong         = "pong"
	kindWelcome      = "welcome"
	kindJoined       = "joined"
	kindAdminJoined  = "admin-joined"
	kindViewerJoined = "viewer-joined"
	kindUserLeft     = "user-left"
	kindError        = "error"
)

// Envelope is the inbound frame format. Session negotiation payloads
// (offer/answer/candidate) are kept as raw JSON: the server relays them
// without ever inspecting or rewriting their contents.
type Envelope struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	IsAdmin   bool            `json:"isAdmin,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Message   string          `json:"message,omitempty"`
	Name      string          `json:"name,omitempty"`
	Avatar    string          `json:"avatar,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// validate checks the kind-specific required fields. A nil return means the
// envelope is safe to dispatch; any error is reported to the sender only.
func (e *Envelope) validate() error {
	switch e.Type {
	case kindJoin:
		if e.RoomID == "" {
			return fmt.Errorf("join message missing roomId")
		}
	case kindOffer:
		if e.RoomID == "" {
			return fmt.Errorf("offer message missing roomId")
		}
		if len(e.Offer) == 0 {
			return fmt.Errorf("offer message missing offer")
		}
	case kindAnswer:
		if e.RoomID == "" {
			return fmt.Errorf("answer message missing roomId")
		}
		if len(e.Answer) == 0 {
			return fmt.Errorf("answer message missing answer")
		}
	case kindICECandidate:
		if e.RoomID == "" {
			return fmt.Errorf("ice-candidate message missing roomId")
		}
		if len(e.Candidate) == 0 {
			return fmt.Errorf("ice-candidate message missing candidate")
		}
	case kindChatMessage:
		if e.RoomID == "" {
			return fmt.Errorf("chat-message missing roomId")
		}
		if e.Message == "" {
			return fmt.Errorf("chat-message missing message")
		}
	case kindPing:
	case "":
		return fmt.Errorf("message missing type")
	default:
		return fmt.Errorf("unknown message type %q", e.Type)
	}
	return nil
}

type welcomePayload struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

type joinedPayload struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	ClientCount int    `json:"clientCount"`
	ClientID    string `json:"clientId"`
	IsAdmin     bool   `json:"isAdmin"`
}

type adminJoinedPayload struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	AdminID string `json:"adminId"`
}

type viewerJoinedPayload struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	ViewerID string `json:"viewerId"`
}

type userLeftPayload struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

// relayPayload wraps an opaque negotiation payload with the sender identity
// so receiving peers know which connection produced it.
type relayPayload struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId"`
	SenderID  string          `json:"senderId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type chatMessagePayload struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	SenderID  string `json:"senderId"`
	Message   string `json:"message"`
	Name      string `json:"name,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Timestamp string `json:"timestamp"`
	IsStaff   bool   `json:"isStaff"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pongPayload struct {
	Type string `json:"type"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
