// Package protocol defines the signaling messages exchanged between the
// call clients and the relay server. Both sides marshal these as JSON
// frames over the websocket channel.
package protocol

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/domain"
)

type Type string

const (
	TypeJoinRoom          Type = "join-room"
	TypeRoomJoined        Type = "room-joined"
	TypeLeaveRoom         Type = "leave-room"
	TypeParticipantJoined Type = "participant-joined"
	TypeParticipantLeft   Type = "participant-left"
	TypeOffer             Type = "offer"
	TypeAnswer            Type = "answer"
	TypeICECandidate      Type = "ice-candidate"
	TypeToggleAudio       Type = "toggle-audio"
	TypeToggleVideo       Type = "toggle-video"
	TypeScreenShare       Type = "screen-share"
	TypeWhiteboardUpdate  Type = "whiteboard-update"
	TypeError             Type = "error"
)

// Envelope carries only the discriminator; handlers re-unmarshal the
// full frame into the typed payload.
type Envelope struct {
	Type Type `json:"type"`
}

func ParseType(data []byte) (Type, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

type Member struct {
	ID   domain.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

// JoinRoom is acked with RoomJoined on the same connection.
type JoinRoom struct {
	Type Type          `json:"type"`
	Room domain.RoomID `json:"roomId"`
}

// RoomJoined returns the member set including the joiner, or an error.
type RoomJoined struct {
	Type    Type                 `json:"type"`
	Room    domain.RoomID        `json:"roomId"`
	Self    domain.ParticipantID `json:"participantId"`
	Members []Member             `json:"members,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type LeaveRoom struct {
	Type Type `json:"type"`
}

type ParticipantJoined struct {
	Type        Type                 `json:"type"`
	Participant domain.ParticipantID `json:"participantId"`
	SocketID    domain.ParticipantID `json:"socketId"`
	DisplayName string               `json:"displayName"`
}

type ParticipantLeft struct {
	Type        Type                 `json:"type"`
	Participant domain.ParticipantID `json:"participantId"`
}

type Offer struct {
	Type Type                 `json:"type"`
	SDP  string               `json:"sdp"`
	To   domain.ParticipantID `json:"to"`
	From domain.ParticipantID `json:"from"`
	Room domain.RoomID        `json:"roomId"`
}

type Answer struct {
	Type Type                 `json:"type"`
	SDP  string               `json:"sdp"`
	To   domain.ParticipantID `json:"to"`
	From domain.ParticipantID `json:"from"`
}

type ICECandidate struct {
	Type      Type                    `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	To        domain.ParticipantID    `json:"to"`
	From      domain.ParticipantID    `json:"from"`
}

// Toggle covers toggle-audio, toggle-video and screen-share: UI-only
// notifications that never touch the media session.
type Toggle struct {
	Type        Type                 `json:"type"`
	Participant domain.ParticipantID `json:"participantId"`
	Enabled     bool                 `json:"enabled"`
	Room        domain.RoomID        `json:"roomId"`
}

// WhiteboardUpdate is relayed verbatim; the server never inspects Data.
type WhiteboardUpdate struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
	Room domain.RoomID   `json:"roomId"`
}

type Error struct {
	Type  Type   `json:"type"`
	Error string `json:"error"`
}
