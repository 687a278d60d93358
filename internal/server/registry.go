// Package server maintains the room registry: the mapping from room ids to
// the set of connections currently joined to them.
package server

import "sync"

// Registry maps room ids to member sets. Rooms are created lazily on the
// first join and deleted as soon as the last member leaves, so every member
// set held by the registry is non-empty. A client belongs to at most one
// room at any instant.
//
// The registry is the only mutable state shared between connection
// goroutines and the liveness monitor; all mutations and membership
// snapshots are serialized by a single mutex. The registry never writes to
// the network itself; broadcasting departure or presence notices is the
// caller's responsibility.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Join adds client to the room, creating the room if it does not exist, and
// records the room and role on the client. It returns the member count after
// the join. The caller must remove the client from any previous room first
// (see Leave); Join itself never fails for a non-empty room id.
func (r *Registry) Join(client *Client, roomID string, asAdmin bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[roomID] = members
	}

	members[client] = struct{}{}
	client.room = roomID
	if asAdmin {
		client.role = RoleAdmin
	} else {
		client.role = RoleViewer
	}

	return len(members)
}

// Leave removes client from its current room, clearing the client's room
// field. When the member set becomes empty the room is deleted. It returns
// the vacated room id, the role the client held there, a snapshot of the
// remaining members, and whether the client was in a room at all.
func (r *Registry) Leave(client *Client) (roomID string, role Role, remaining []*Client, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client.room == "" {
		return "", "", nil, false
	}

	roomID = client.room
	role = client.role
	client.room = ""

	members, exists := r.rooms[roomID]
	if !exists {
		return roomID, role, nil, true
	}

	delete(members, client)
	if len(members) == 0 {
		delete(r.rooms, roomID)
		return roomID, role, nil, true
	}

	remaining = make([]*Client, 0, len(members))
	for member := range members {
		remaining = append(remaining, member)
	}
	return roomID, role, remaining, true
}

// Members returns a snapshot of the room's member set, or an empty slice if
// the room does not exist.
func (r *Registry) Members(roomID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	snapshot := make([]*Client, 0, len(members))
	for member := range members {
		snapshot = append(snapshot, member)
	}
	return snapshot
}

// Admins returns a snapshot of the room members that joined as admin.
func (r *Registry) Admins(roomID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var admins []*Client
	for member := range r.rooms[roomID] {
		if member.role == RoleAdmin {
			admins = append(admins, member)
		}
	}
	return admins
}

// RoleOf returns the role the client currently holds in its room.
func (r *Registry) RoleOf(client *Client) Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return client.role
}

// RoomOf returns the id of the room the client is currently in, or the empty
// string when the client has not joined a room.
func (r *Registry) RoomOf(client *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return client.room
}

// RoomCount returns the number of rooms that currently have members.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
