package rtc

import (
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// SinkStats counts what arrives on a remote track. The headless client
// has no renderer; the counters stand in for it and feed the CLI's
// periodic stats line.
type SinkStats struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func (s *SinkStats) Packets() uint64 { return s.packets.Load() }
func (s *SinkStats) Bytes() uint64   { return s.bytes.Load() }

func (s *SinkStats) record(pkt *rtp.Packet) {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(pkt.Payload)))
}

// drainTrack reads RTP from a remote track until it ends. Without a
// reader the track would stall its receiver.
func drainTrack(track *webrtc.TrackRemote, stats *SinkStats) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "client.rtc").
				Str("track_id", track.ID()).
				Msg("remote track ended")
			return
		}
		stats.record(pkt)
	}
}
