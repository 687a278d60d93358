package server

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestEnvelopeValidation verifies the per-kind required field rules: a
// recognized kind missing its payload field is rejected, and unknown kinds
// are rejected with an error naming them.
func TestEnvelopeValidation(t *testing.T) {
	raw := json.RawMessage(`{"sdp":"v=0"}`)

	tests := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{"valid join", Envelope{Type: kindJoin, RoomID: "studio"}, ""},
		{"join missing roomId", Envelope{Type: kindJoin}, "roomId"},
		{"valid offer", Envelope{Type: kindOffer, RoomID: "studio", Offer: raw}, ""},
		{"offer missing offer", Envelope{Type: kindOffer, RoomID: "studio"}, "offer"},
		{"offer missing roomId", Envelope{Type: kindOffer, Offer: raw}, "roomId"},
		{"answer missing answer", Envelope{Type: kindAnswer, RoomID: "studio"}, "answer"},
		{"candidate missing candidate", Envelope{Type: kindICECandidate, RoomID: "studio"}, "candidate"},
		{"chat missing message", Envelope{Type: kindChatMessage, RoomID: "studio"}, "message"},
		{"valid ping", Envelope{Type: kindPing}, ""},
		{"missing type", Envelope{}, "type"},
		{"unknown kind", Envelope{Type: "teleport"}, `"teleport"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid envelope, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

// TestIsExpectedCloseError verifies the close-error classification used to
// silence routine teardown noise.
func TestIsExpectedCloseError(t *testing.T) {
	if !isExpectedCloseError(nil) {
		t.Error("nil error should be expected")
	}
	if isExpectedCloseError(json.Unmarshal([]byte("{"), &struct{}{})) {
		t.Error("JSON error should not be classified as an expected close")
	}
}
