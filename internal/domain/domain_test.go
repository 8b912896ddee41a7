package domain

import (
	"strings"
	"testing"
)

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		name    string
		id      RoomID
		wantErr error
	}{
		{name: "ok", id: "room-abc123", wantErr: nil},
		{name: "max length", id: RoomID(strings.Repeat("a", MaxRoomIDLen)), wantErr: nil},
		{name: "empty", id: "", wantErr: ErrRoomIDEmpty},
		{name: "too long", id: RoomID(strings.Repeat("a", MaxRoomIDLen+1)), wantErr: ErrRoomIDTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRoomID(tt.id); err != tt.wantErr {
				t.Errorf("ValidateRoomID(%q) = %v, want %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestNewParticipant(t *testing.T) {
	tests := []struct {
		name        string
		id          ParticipantID
		displayName string
		wantErr     error
	}{
		{name: "ok", id: "p1", displayName: "alice", wantErr: nil},
		{name: "empty id", id: "", displayName: "alice", wantErr: ErrParticipantIDEmpty},
		{name: "empty name", id: "p1", displayName: "", wantErr: ErrDisplayNameEmpty},
		{name: "long name", id: "p1", displayName: strings.Repeat("x", MaxDisplayNameLen+1), wantErr: ErrDisplayNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParticipant(tt.id, tt.displayName)
			if err != tt.wantErr {
				t.Fatalf("NewParticipant() err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && (p.ID != tt.id || p.DisplayName != tt.displayName) {
				t.Errorf("NewParticipant() = %+v", p)
			}
		})
	}
}

func TestNewParticipantIDUnique(t *testing.T) {
	a, b := NewParticipantID(), NewParticipantID()
	if a == b {
		t.Fatalf("expected unique ids, got %q twice", a)
	}
}
