package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Event is one decoded message from the signaling channel. The channel
// preserves per-sender order; the orchestrator consumes events on a
// single loop.
type Event interface{ event() }

// RoomJoined acks our join-room request.
type RoomJoined struct {
	Room    domain.RoomID
	Self    domain.ParticipantID
	Members []protocol.Member
	Err     string
}

type ParticipantJoined struct {
	ID          domain.ParticipantID
	DisplayName string
}

type ParticipantLeft struct {
	ID domain.ParticipantID
}

type OfferReceived struct {
	From domain.ParticipantID
	Room domain.RoomID
	SDP  string
}

type AnswerReceived struct {
	From domain.ParticipantID
	SDP  string
}

type CandidateReceived struct {
	From      domain.ParticipantID
	Candidate webrtc.ICECandidateInit
}

// PeerToggle is a UI-only notification (muted icon, hidden video,
// screen share banner).
type PeerToggle struct {
	Kind        protocol.Type
	Participant domain.ParticipantID
	Enabled     bool
}

type ServerError struct {
	Message string
}

// Disconnected marks the end of the stream; no events follow.
type Disconnected struct {
	Err error
}

func (RoomJoined) event()        {}
func (ParticipantJoined) event() {}
func (ParticipantLeft) event()   {}
func (OfferReceived) event()     {}
func (AnswerReceived) event()    {}
func (CandidateReceived) event() {}
func (PeerToggle) event()        {}
func (ServerError) event()       {}
func (Disconnected) event()      {}
