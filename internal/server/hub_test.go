package server

import (
	"testing"
	"time"
)

// TestNewHub verifies that NewHub returns a hub with an empty client set and
// a usable registry.
func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.Registry() == nil {
		t.Fatal("Hub registry is nil")
	}
	if hub.ConnectionCount() != 0 {
		t.Errorf("Expected 0 connections, got %d", hub.ConnectionCount())
	}
}

// TestSafeSendUnregisteredClient verifies that delivery to a client the hub
// does not know about reports failure instead of panicking.
func TestSafeSendUnregisteredClient(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, hub, "test")

	if hub.safeSend(client, []byte(`{}`)) {
		t.Error("safeSend succeeded for an unregistered client")
	}
}

// TestDeliverIsolation verifies that one recipient's delivery failure does
// not prevent delivery to the other recipients in the same fan-out, and that
// the failed recipient is pruned from the hub.
func TestDeliverIsolation(t *testing.T) {
	hub := NewHub()
	registry := hub.Registry()
	healthy := newRegisteredClient(hub)
	stuck := newRegisteredClient(hub)

	registry.Join(healthy, "studio", false)
	registry.Join(stuck, "studio", false)

	// Fill the stuck client's buffer so the next send fails.
	for i := 0; i < cap(stuck.send); i++ {
		stuck.send <- []byte(`{}`)
	}

	hub.broadcastToRoom("studio", []byte(`{"type":"chat-message"}`), nil)

	select {
	case <-healthy.send:
	case <-time.After(time.Second):
		t.Fatal("Healthy recipient never received the broadcast")
	}

	hub.mutex.RLock()
	_, stillRegistered := hub.clients[stuck]
	hub.mutex.RUnlock()
	if stillRegistered {
		t.Error("Expected stuck client to be pruned from the hub")
	}
	if hub.ConnectionCount() != 1 {
		t.Errorf("Expected 1 remaining connection, got %d", hub.ConnectionCount())
	}
}

// TestBroadcastExcludesSender verifies the exclude argument suppresses
// delivery to exactly that member.
func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	registry := hub.Registry()
	sender := newRegisteredClient(hub)
	receiver := newRegisteredClient(hub)

	registry.Join(sender, "studio", false)
	registry.Join(receiver, "studio", false)

	hub.broadcastToRoom("studio", []byte(`{"type":"offer"}`), sender)

	select {
	case <-receiver.send:
	case <-time.After(time.Second):
		t.Fatal("Receiver never received the broadcast")
	}
	select {
	case data := <-sender.send:
		t.Fatalf("Sender received its own broadcast: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHandleDisconnectBroadcastsDeparture verifies the disconnect path
// removes the client from its room, notifies the remaining members, and
// unregisters the client from the hub.
func TestHandleDisconnectBroadcastsDeparture(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer func() {
		if err := hub.Shutdown(time.Second); err != nil {
			t.Errorf("Hub shutdown failed: %v", err)
		}
	}()

	registry := hub.Registry()
	leaver := newRegisteredClient(hub)
	stayer := newRegisteredClient(hub)
	registry.Join(leaver, "studio", true)
	registry.Join(stayer, "studio", false)

	hub.handleDisconnect(leaver)

	departure := readPayload(t, stayer)
	assertPayloadType(t, departure, "user-left")
	if departure["userId"] != leaver.id {
		t.Errorf("Expected userId %q, got %v", leaver.id, departure["userId"])
	}
	if departure["isAdmin"] != true {
		t.Errorf("Expected isAdmin true, got %v", departure["isAdmin"])
	}

	if members := registry.Members("studio"); len(members) != 1 {
		t.Errorf("Expected 1 member after disconnect, got %d", len(members))
	}

	// The unregister path is asynchronous through the hub loop.
	deadline := time.After(time.Second)
	for hub.ConnectionCount() != 1 {
		select {
		case <-deadline:
			t.Fatalf("Expected 1 connection after disconnect, got %d", hub.ConnectionCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestRegisterAfterShutdownReturns verifies that handing a client to a hub
// whose loop has already exited returns promptly instead of blocking on the
// register channel forever.
func TestRegisterAfterShutdownReturns(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	if err := hub.Shutdown(time.Second); err != nil {
		t.Fatalf("Hub shutdown failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		hub.registerClient(NewClient(nil, hub, "test"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registerClient blocked after hub shutdown")
	}
}

// TestHubShutdownIdempotentWhenIdle verifies an idle hub shuts down cleanly.
func TestHubShutdownIdempotentWhenIdle(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}
