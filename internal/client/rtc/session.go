// Package rtc implements the peer.MediaSession contract on top of a
// real peer connection.
package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/client/peer"
	"github.com/dkeye/Meet/internal/domain"
)

var ErrNoSender = errors.New("no sender for track kind")

type Config struct {
	ICEServers []string
}

func (c Config) webrtcConfiguration() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, u := range c.ICEServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return webrtc.Configuration{ICEServers: servers}
}

// Callbacks are invoked from pion's goroutines; the orchestrator funnels
// them back onto its event loop.
type Callbacks struct {
	OnLocalCandidate func(webrtc.ICECandidateInit)
	OnConnectivity   func(peer.Connectivity)
	OnRemoteTrack    func(kind webrtc.RTPCodecType, stats *SinkStats)
}

type Session struct {
	pc     *webrtc.PeerConnection
	remote domain.ParticipantID

	mu      sync.Mutex
	senders map[webrtc.RTPCodecType]*webrtc.RTPSender
	closed  bool
}

func NewSession(cfg Config, remote domain.ParticipantID, cb Callbacks) (*Session, error) {
	pc, err := webrtc.NewPeerConnection(cfg.webrtcConfiguration())
	if err != nil {
		return nil, err
	}
	s := &Session{
		pc:      pc,
		remote:  remote,
		senders: make(map[webrtc.RTPCodecType]*webrtc.RTPSender),
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && cb.OnLocalCandidate != nil {
			cb.OnLocalCandidate(cand.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Info().Str("module", "client.rtc").
			Str("remote", string(remote)).
			Str("state", state.String()).
			Msg("peer connection state")
		if cb.OnConnectivity != nil {
			cb.OnConnectivity(mapConnectivity(state))
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().Str("module", "client.rtc").
			Str("remote", string(remote)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		stats := &SinkStats{}
		if cb.OnRemoteTrack != nil {
			cb.OnRemoteTrack(track.Kind(), stats)
		}
		go drainTrack(track, stats)
	})

	return s, nil
}

func mapConnectivity(state webrtc.PeerConnectionState) peer.Connectivity {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return peer.ConnectivityNew
	case webrtc.PeerConnectionStateConnecting:
		return peer.ConnectivityChecking
	case webrtc.PeerConnectionStateConnected:
		return peer.ConnectivityConnected
	case webrtc.PeerConnectionStateDisconnected:
		return peer.ConnectivityDisconnected
	case webrtc.PeerConnectionStateFailed:
		return peer.ConnectivityFailed
	default:
		return peer.ConnectivityClosed
	}
}

func (s *Session) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (s *Session) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (s *Session) SetLocalDescription(d webrtc.SessionDescription) error {
	return s.pc.SetLocalDescription(d)
}

func (s *Session) SetRemoteDescription(d webrtc.SessionDescription) error {
	return s.pc.SetRemoteDescription(d)
}

func (s *Session) Rollback() error {
	return s.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (s *Session) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(cand)
}

// AttachTrack adds an outbound track and keeps its sender so the
// payload source can later be swapped without renegotiation.
func (s *Session) AttachTrack(track webrtc.TrackLocal) error {
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.senders[track.Kind()] = sender
	s.mu.Unlock()

	// Drain RTCP so interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *Session) ReplaceOutboundTrack(kind webrtc.RTPCodecType, track webrtc.TrackLocal) error {
	s.mu.Lock()
	sender, ok := s.senders[kind]
	s.mu.Unlock()
	if !ok {
		return ErrNoSender
	}
	return sender.ReplaceTrack(track)
}

func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.pc.Close()
}
