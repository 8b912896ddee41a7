// Package peer drives one pairwise media negotiation: offer/answer
// exchange, candidate buffering, glare resolution and teardown. One
// Machine exists per remote participant; all methods must be called
// from the orchestrator's single event loop.
package peer

import (
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// MediaSession is the media transport a Machine owns and drives.
// Implemented by client/rtc on top of a real peer connection and by
// fakes in tests.
type MediaSession interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// Rollback discards a local offer that lost the glare tie-break.
	Rollback() error
	AddICECandidate(webrtc.ICECandidateInit) error
	AttachTrack(track webrtc.TrackLocal) error
	// ReplaceOutboundTrack swaps the payload source of an already
	// negotiated sender, without renegotiation.
	ReplaceOutboundTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error
	Close() error
}

// Sender transmits signaling messages toward the remote participant.
type Sender interface {
	SendOffer(to domain.ParticipantID, room domain.RoomID, sdp string) error
	SendAnswer(to domain.ParticipantID, sdp string) error
	SendCandidate(to domain.ParticipantID, cand webrtc.ICECandidateInit) error
}

// Initiates is the glare tie-break: a total order over the
// channel-assigned participant ids. The byte-wise greater id initiates;
// ids are unique per connection, so the order has no ties and both
// sides agree on who offers first.
func Initiates(self, remote domain.ParticipantID) bool {
	return self > remote
}

type Machine struct {
	self   domain.ParticipantID
	remote domain.ParticipantID
	room   domain.RoomID

	session MediaSession
	out     Sender
	log     zerolog.Logger

	state         SignalingState
	remoteDescSet bool

	// At most one buffered remote offer from a glare window; a newer
	// offer replaces it.
	pendingOffer *webrtc.SessionDescription

	// Locally discovered candidates queued until a remote description
	// exists, flushed in FIFO order exactly once.
	queuedCandidates []webrtc.ICECandidateInit

	offerSentAt time.Time
	timeout     time.Duration
}

func NewMachine(self, remote domain.ParticipantID, room domain.RoomID, session MediaSession, out Sender, timeout time.Duration) *Machine {
	return &Machine{
		self:    self,
		remote:  remote,
		room:    room,
		session: session,
		out:     out,
		timeout: timeout,
		state:   StateIdle,
		log: log.With().
			Str("module", "client.peer").
			Str("remote", string(remote)).
			Logger(),
	}
}

func (m *Machine) Remote() domain.ParticipantID { return m.remote }
func (m *Machine) State() SignalingState        { return m.state }

// AttachTrack adds an outbound local track to the media session. The
// caller follows up with Negotiate.
func (m *Machine) AttachTrack(track webrtc.TrackLocal) error {
	return m.session.AttachTrack(track)
}

// ReplaceOutboundTrack swaps a sender's payload source (screen share)
// without entering negotiation.
func (m *Machine) ReplaceOutboundTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error {
	return m.session.ReplaceOutboundTrack(kind, track)
}

// Negotiate is the local renegotiation trigger. Only the side that wins
// the tie-break offers; the other side waits for the incoming offer.
// Failures are logged and not retried; the next trigger may succeed.
func (m *Machine) Negotiate(now time.Time) {
	if m.state != StateIdle && m.state != StateStable {
		m.log.Debug().Str("state", m.state.String()).Msg("negotiate skipped, not settled")
		return
	}
	if !Initiates(m.self, m.remote) {
		m.log.Debug().Msg("negotiate deferred, waiting for remote offer")
		return
	}

	offer, err := m.session.CreateOffer()
	if err != nil {
		m.log.Error().Err(err).Msg("create offer")
		return
	}
	if err := m.session.SetLocalDescription(offer); err != nil {
		m.log.Error().Err(err).Msg("set local offer")
		return
	}
	m.state = StateHaveLocalOffer
	m.offerSentAt = now
	if err := m.out.SendOffer(m.remote, m.room, offer.SDP); err != nil {
		m.log.Error().Err(err).Msg("send offer")
	}
}

// HandleOffer processes a remote offer per the glare rules.
func (m *Machine) HandleOffer(sdp string) {
	switch m.state {
	case StateClosed:
		m.log.Debug().Msg("offer for closed session discarded")
	case StateHaveLocalOffer:
		if Initiates(m.self, m.remote) {
			// We win the tie-break: hold the offer until ours is
			// answered. A newer offer replaces the buffered one.
			m.pendingOffer = &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
			m.log.Info().Msg("glare: buffered remote offer")
			return
		}
		// We lose: discard our own offer and take theirs.
		if err := m.session.Rollback(); err != nil {
			m.log.Error().Err(err).Msg("glare rollback")
			return
		}
		m.state = StateStable
		m.log.Info().Msg("glare: rolled back local offer")
		m.accept(sdp)
	default:
		// Idle, stable, or a replaced remote offer.
		m.accept(sdp)
	}
}

// accept applies a remote offer and answers it. On a mid-path failure
// the session keeps its last-good descriptions; the peer's next offer
// re-enters here.
func (m *Machine) accept(sdp string) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := m.session.SetRemoteDescription(offer); err != nil {
		m.log.Error().Err(err).Msg("set remote offer")
		return
	}
	m.state = StateHaveRemoteOffer
	m.markRemoteDescSet()

	answer, err := m.session.CreateAnswer()
	if err != nil {
		m.log.Error().Err(err).Msg("create answer")
		return
	}
	if err := m.session.SetLocalDescription(answer); err != nil {
		m.log.Error().Err(err).Msg("set local answer")
		return
	}
	m.state = StateStable
	if err := m.out.SendAnswer(m.remote, answer.SDP); err != nil {
		m.log.Error().Err(err).Msg("send answer")
	}
}

// HandleAnswer completes our outstanding offer. Answers in any other
// state are stale or duplicates and are discarded.
func (m *Machine) HandleAnswer(sdp string) {
	if m.state != StateHaveLocalOffer {
		m.log.Debug().Str("state", m.state.String()).Msg("stale answer discarded")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := m.session.SetRemoteDescription(answer); err != nil {
		m.log.Error().Err(err).Msg("set remote answer")
		return
	}
	m.state = StateStable
	m.markRemoteDescSet()
	m.replayPendingOffer()
}

func (m *Machine) replayPendingOffer() {
	if m.pendingOffer == nil {
		return
	}
	buffered := m.pendingOffer
	m.pendingOffer = nil
	m.log.Info().Msg("replaying buffered glare offer")
	m.accept(buffered.SDP)
}

// HandleRemoteCandidate applies a remote candidate. Without a remote
// description it is dropped: only locally generated candidates are
// buffered in this design.
func (m *Machine) HandleRemoteCandidate(cand webrtc.ICECandidateInit) {
	if m.state == StateClosed {
		return
	}
	if !m.remoteDescSet {
		m.log.Debug().Msg("remote candidate before remote description dropped")
		return
	}
	if err := m.session.AddICECandidate(cand); err != nil {
		m.log.Error().Err(err).Msg("add remote candidate")
	}
}

// OnLocalCandidate transmits a locally discovered candidate, or queues
// it until the session has a remote description.
func (m *Machine) OnLocalCandidate(cand webrtc.ICECandidateInit) {
	if m.state == StateClosed {
		return
	}
	if !m.remoteDescSet {
		m.queuedCandidates = append(m.queuedCandidates, cand)
		return
	}
	if err := m.out.SendCandidate(m.remote, cand); err != nil {
		m.log.Error().Err(err).Msg("send candidate")
	}
}

// OnConnectivity reacts to media transport state changes. Teardown on
// disconnected/failed is the orchestrator's call; the machine only uses
// connected as a late flush point for queued candidates.
func (m *Machine) OnConnectivity(state Connectivity) {
	if m.state == StateClosed {
		return
	}
	if state == ConnectivityConnected {
		m.flushCandidates()
	}
}

func (m *Machine) markRemoteDescSet() {
	m.remoteDescSet = true
	m.flushCandidates()
}

func (m *Machine) flushCandidates() {
	if len(m.queuedCandidates) == 0 {
		return
	}
	for _, cand := range m.queuedCandidates {
		if err := m.out.SendCandidate(m.remote, cand); err != nil {
			m.log.Error().Err(err).Msg("flush candidate")
		}
	}
	m.queuedCandidates = nil
}

// ExpireOffer rolls a too-long-outstanding offer back to stable so a
// peer that never answers cannot pin the session half-open. Reports
// whether it fired.
func (m *Machine) ExpireOffer(now time.Time) bool {
	if m.state != StateHaveLocalOffer || m.timeout <= 0 {
		return false
	}
	if now.Sub(m.offerSentAt) < m.timeout {
		return false
	}
	m.log.Warn().Dur("timeout", m.timeout).Msg("offer expired, rolling back")
	if err := m.session.Rollback(); err != nil {
		m.log.Error().Err(err).Msg("expire rollback")
		return false
	}
	m.state = StateStable
	m.replayPendingOffer()
	return true
}

// Close tears the session down; every later message for this machine is
// discarded.
func (m *Machine) Close() {
	if m.state == StateClosed {
		return
	}
	m.state = StateClosed
	m.pendingOffer = nil
	m.queuedCandidates = nil
	if err := m.session.Close(); err != nil {
		m.log.Error().Err(err).Msg("close media session")
	}
}
