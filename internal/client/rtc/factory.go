package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Meet/internal/client/peer"
	"github.com/dkeye/Meet/internal/domain"
)

// Factory builds one Session per remote participant and keeps the
// remote track counters for the stats command.
type Factory struct {
	cfg Config

	mu    sync.Mutex
	sinks map[string]*SinkStats
}

func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg, sinks: make(map[string]*SinkStats)}
}

func (f *Factory) NewSession(remote domain.ParticipantID, onLocalCandidate func(webrtc.ICECandidateInit), onConnectivity func(peer.Connectivity)) (peer.MediaSession, error) {
	return NewSession(f.cfg, remote, Callbacks{
		OnLocalCandidate: onLocalCandidate,
		OnConnectivity:   onConnectivity,
		OnRemoteTrack: func(kind webrtc.RTPCodecType, stats *SinkStats) {
			f.mu.Lock()
			f.sinks[string(remote)+"/"+kind.String()] = stats
			f.mu.Unlock()
		},
	})
}

// TrackStats is a point-in-time reading of one remote track.
type TrackStats struct {
	Packets uint64
	Bytes   uint64
}

// Snapshot reports the inbound counters keyed by "<participant>/<kind>".
func (f *Factory) Snapshot() map[string]TrackStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]TrackStats, len(f.sinks))
	for key, s := range f.sinks {
		out[key] = TrackStats{Packets: s.Packets(), Bytes: s.Bytes()}
	}
	return out
}
