// Package orch owns the local side of a call: capture, one negotiation
// machine per remote participant, and the fan-out of local changes.
// All state is confined to the Run loop; nothing here needs a lock.
package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/client/capture"
	"github.com/dkeye/Meet/internal/client/peer"
	"github.com/dkeye/Meet/internal/client/signaling"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Channel is the signaling transport the orchestrator speaks through.
// Implemented by signaling.Client.
type Channel interface {
	peer.Sender
	Events() <-chan signaling.Event
	JoinRoom(domain.RoomID) error
	LeaveRoom() error
	SendToggle(kind protocol.Type, enabled bool, room domain.RoomID) error
}

// SessionFactory builds one media session per remote participant. The
// callbacks fire on transport goroutines; the orchestrator funnels them
// back onto its loop.
type SessionFactory interface {
	NewSession(remote domain.ParticipantID, onLocalCandidate func(webrtc.ICECandidateInit), onConnectivity func(peer.Connectivity)) (peer.MediaSession, error)
}

// CaptureFactory acquires the local devices; failure is a
// MediaAccessError surfaced to the caller of JoinRoom.
type CaptureFactory func() (capture.Capture, error)

type mediaEvent struct {
	from         domain.ParticipantID
	candidate    *webrtc.ICECandidateInit
	connectivity *peer.Connectivity
	screenEnded  bool
}

type peerState struct {
	name    string
	audio   bool
	video   bool
	sharing bool
}

type Orchestrator struct {
	channel  Channel
	sessions SessionFactory
	acquire  CaptureFactory
	timeout  time.Duration

	self    domain.ParticipantID
	room    domain.RoomID
	capture capture.Capture
	sharing bool

	machines map[domain.ParticipantID]*peer.Machine
	peers    map[domain.ParticipantID]*peerState

	// Participants announced before our own join ack; machines for them
	// are created once the ack delivers self and room.
	pending map[domain.ParticipantID]string

	media chan mediaEvent
	cmds  chan func()

	now func() time.Time
	log zerolog.Logger
}

func New(channel Channel, sessions SessionFactory, acquire CaptureFactory, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		channel:  channel,
		sessions: sessions,
		acquire:  acquire,
		timeout:  timeout,
		machines: make(map[domain.ParticipantID]*peer.Machine),
		peers:    make(map[domain.ParticipantID]*peerState),
		pending:  make(map[domain.ParticipantID]string),
		media:    make(chan mediaEvent, 64),
		cmds:     make(chan func(), 16),
		now:      time.Now,
		log:      log.With().Str("module", "client.orch").Logger(),
	}
}

// Run drives the event loop until the context ends or the signaling
// channel disconnects.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer o.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.channel.Events():
			if !ok {
				return
			}
			if _, disconnected := ev.(signaling.Disconnected); disconnected {
				o.log.Info().Msg("signaling channel closed")
				return
			}
			o.dispatch(ev)
		case mev := <-o.media:
			o.dispatchMedia(mev)
		case now := <-ticker.C:
			o.tick(now)
		case fn := <-o.cmds:
			fn()
		}
	}
}

// Do schedules fn onto the event loop; user commands enter here.
func (o *Orchestrator) Do(fn func()) {
	o.cmds <- fn
}

// JoinRoom acquires local media and requests room membership. The
// member list arrives asynchronously as a RoomJoined event.
func (o *Orchestrator) JoinRoom(room domain.RoomID) error {
	if o.capture == nil {
		local, err := o.acquire()
		if err != nil {
			return fmt.Errorf("%w: %w", capture.ErrNoDevice, err)
		}
		o.capture = local
	}
	if err := o.channel.JoinRoom(room); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) dispatch(ev signaling.Event) {
	switch e := ev.(type) {
	case signaling.RoomJoined:
		o.handleRoomJoined(e)
	case signaling.ParticipantJoined:
		o.handleParticipantJoined(e)
	case signaling.ParticipantLeft:
		o.handleParticipantLeft(e.ID)
	case signaling.OfferReceived:
		o.handleOffer(e)
	case signaling.AnswerReceived:
		o.handleAnswer(e)
	case signaling.CandidateReceived:
		o.handleCandidate(e)
	case signaling.PeerToggle:
		o.handlePeerToggle(e)
	case signaling.ServerError:
		o.log.Warn().Str("error", e.Message).Msg("server error")
	}
}

func (o *Orchestrator) dispatchMedia(ev mediaEvent) {
	if ev.screenEnded {
		o.handleScreenEnded()
		return
	}
	m, ok := o.machines[ev.from]
	if !ok {
		return
	}
	switch {
	case ev.candidate != nil:
		m.OnLocalCandidate(*ev.candidate)
	case ev.connectivity != nil:
		o.handleConnectivity(m, *ev.connectivity)
	}
}

func (o *Orchestrator) handleRoomJoined(e signaling.RoomJoined) {
	if e.Err != "" {
		o.log.Error().Str("error", e.Err).Str("room", string(e.Room)).Msg("join rejected")
		return
	}
	o.self = e.Self
	o.room = e.Room
	o.log.Info().Str("room", string(e.Room)).
		Str("self", string(e.Self)).
		Int("members", len(e.Members)).
		Msg("joined room")
	for _, m := range e.Members {
		if m.ID == o.self {
			continue
		}
		o.addPeer(m.ID, m.Name)
	}
	for id, name := range o.pending {
		o.addPeer(id, name)
	}
	o.pending = make(map[domain.ParticipantID]string)
}

func (o *Orchestrator) handleParticipantJoined(e signaling.ParticipantJoined) {
	if o.self == "" {
		// Announced before our own join ack; a machine built now would
		// not know who initiates or which room to negotiate in.
		o.log.Debug().Str("pid", string(e.ID)).Msg("participant held until join ack")
		o.pending[e.ID] = e.DisplayName
		return
	}
	o.log.Info().Str("pid", string(e.ID)).Str("name", e.DisplayName).Msg("participant joined")
	o.addPeer(e.ID, e.DisplayName)
}

// addPeer creates the negotiation machine for a remote participant and
// attaches the current local tracks. The tie-break decides which side
// transmits the first offer.
func (o *Orchestrator) addPeer(id domain.ParticipantID, name string) {
	if _, ok := o.machines[id]; ok {
		return
	}
	remote := id
	session, err := o.sessions.NewSession(remote,
		func(cand webrtc.ICECandidateInit) {
			o.media <- mediaEvent{from: remote, candidate: &cand}
		},
		func(state peer.Connectivity) {
			o.media <- mediaEvent{from: remote, connectivity: &state}
		},
	)
	if err != nil {
		o.log.Error().Err(err).Str("pid", string(id)).Msg("create media session")
		return
	}

	m := peer.NewMachine(o.self, id, o.room, session, o.channel, o.timeout)
	o.machines[id] = m
	o.peers[id] = &peerState{name: name, audio: true, video: true}

	for _, track := range o.capture.Tracks() {
		if err := m.AttachTrack(track); err != nil {
			o.log.Error().Err(err).Str("pid", string(id)).Msg("attach track")
		}
	}
	m.Negotiate(o.now())
}

func (o *Orchestrator) handleParticipantLeft(id domain.ParticipantID) {
	delete(o.pending, id)
	m, ok := o.machines[id]
	if !ok {
		return
	}
	o.log.Info().Str("pid", string(id)).Msg("participant left")
	m.Close()
	delete(o.machines, id)
	delete(o.peers, id)
}

func (o *Orchestrator) handleOffer(e signaling.OfferReceived) {
	m, ok := o.machines[e.From]
	if !ok {
		// Never recreate a session from a stray message; only a fresh
		// participant-joined may do that.
		o.log.Debug().Str("from", string(e.From)).Msg("offer for unknown peer dropped")
		return
	}
	m.HandleOffer(e.SDP)
}

func (o *Orchestrator) handleAnswer(e signaling.AnswerReceived) {
	m, ok := o.machines[e.From]
	if !ok {
		o.log.Debug().Str("from", string(e.From)).Msg("answer for unknown peer dropped")
		return
	}
	m.HandleAnswer(e.SDP)
}

func (o *Orchestrator) handleCandidate(e signaling.CandidateReceived) {
	m, ok := o.machines[e.From]
	if !ok {
		o.log.Debug().Str("from", string(e.From)).Msg("candidate for unknown peer dropped")
		return
	}
	m.HandleRemoteCandidate(e.Candidate)
}

func (o *Orchestrator) handlePeerToggle(e signaling.PeerToggle) {
	st, ok := o.peers[e.Participant]
	if !ok {
		return
	}
	switch e.Kind {
	case protocol.TypeToggleAudio:
		st.audio = e.Enabled
	case protocol.TypeToggleVideo:
		st.video = e.Enabled
	case protocol.TypeScreenShare:
		st.sharing = e.Enabled
	}
	o.log.Info().Str("pid", string(e.Participant)).
		Str("kind", string(e.Kind)).
		Bool("enabled", e.Enabled).
		Msg("peer toggle")
}

// handleConnectivity tears the session down on disconnect/failure;
// re-joining the room is the recovery path.
func (o *Orchestrator) handleConnectivity(m *peer.Machine, state peer.Connectivity) {
	if state == peer.ConnectivityDisconnected || state == peer.ConnectivityFailed {
		o.log.Warn().Str("pid", string(m.Remote())).
			Str("state", state.String()).
			Msg("connectivity lost, tearing down")
		m.Close()
		delete(o.machines, m.Remote())
		delete(o.peers, m.Remote())
		return
	}
	m.OnConnectivity(state)
}

func (o *Orchestrator) tick(now time.Time) {
	for _, m := range o.machines {
		m.ExpireOffer(now)
	}
}

// ToggleTrack flips the local track of the given kind and notifies the
// room. No SDP work: peers only update their rendering.
func (o *Orchestrator) ToggleTrack(kind webrtc.RTPCodecType) bool {
	if o.capture == nil {
		return false
	}
	enabled := !o.capture.Enabled(kind)
	o.capture.SetEnabled(kind, enabled)

	typ := protocol.TypeToggleVideo
	if kind == webrtc.RTPCodecTypeAudio {
		typ = protocol.TypeToggleAudio
	}
	if err := o.channel.SendToggle(typ, enabled, o.room); err != nil {
		o.log.Error().Err(err).Msg("send toggle")
	}
	return enabled
}

// StartScreenShare swaps the outbound video payload source on every
// active session. Sender reuse means no renegotiation.
func (o *Orchestrator) StartScreenShare() error {
	if o.capture == nil || o.sharing {
		return nil
	}
	track, err := o.capture.StartScreen(func() {
		o.media <- mediaEvent{screenEnded: true}
	})
	if err != nil {
		return err
	}
	o.sharing = true
	o.replaceVideo(track)
	if err := o.channel.SendToggle(protocol.TypeScreenShare, true, o.room); err != nil {
		o.log.Error().Err(err).Msg("send screen-share")
	}
	return nil
}

func (o *Orchestrator) StopScreenShare() {
	if !o.sharing {
		return
	}
	o.capture.StopScreen()
	o.revertToCamera()
}

// handleScreenEnded fires when the share source stops on its own (the
// user ended it outside our controls).
func (o *Orchestrator) handleScreenEnded() {
	if !o.sharing {
		return
	}
	o.revertToCamera()
}

func (o *Orchestrator) revertToCamera() {
	o.sharing = false
	o.replaceVideo(o.capture.Track(webrtc.RTPCodecTypeVideo))
	if err := o.channel.SendToggle(protocol.TypeScreenShare, false, o.room); err != nil {
		o.log.Error().Err(err).Msg("send screen-share")
	}
}

// replaceVideo applies the swap per machine; one peer's failure never
// affects the others.
func (o *Orchestrator) replaceVideo(track webrtc.TrackLocal) {
	for id, m := range o.machines {
		if err := m.ReplaceOutboundTrack(webrtc.RTPCodecTypeVideo, track); err != nil {
			o.log.Error().Err(err).Str("pid", string(id)).Msg("replace video track")
		}
	}
}

// LeaveRoom closes every session and releases the local devices.
func (o *Orchestrator) LeaveRoom() {
	if err := o.channel.LeaveRoom(); err != nil {
		o.log.Error().Err(err).Msg("send leave")
	}
	o.teardown()
}

func (o *Orchestrator) teardown() {
	for id, m := range o.machines {
		m.Close()
		delete(o.machines, id)
	}
	for id := range o.peers {
		delete(o.peers, id)
	}
	o.pending = make(map[domain.ParticipantID]string)
	if o.capture != nil {
		o.capture.Close()
		o.capture = nil
	}
	o.sharing = false
	o.room = ""
}

// Peers reports the current remote participants and their UI state.
func (o *Orchestrator) Peers() map[domain.ParticipantID]string {
	out := make(map[domain.ParticipantID]string, len(o.peers))
	for id, st := range o.peers {
		out[id] = st.name
	}
	return out
}
