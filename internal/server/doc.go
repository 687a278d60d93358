// Package server implements the GoCast signaling and relay server: a
// WebSocket endpoint that organizes connections into rooms, relays WebRTC
// session negotiation payloads (offer/answer/ICE) between room members,
// broadcasts chat and presence events, and evicts unresponsive connections.
//
// The implementation is organized into specialized files for configuration,
// the room registry, the hub, clients, message routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package server
