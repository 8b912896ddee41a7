package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// handleToggle relays toggle-audio / toggle-video so peers update their
// rendering. The media session is never touched.
func (ctl *Controller) handleToggle(pid domain.ParticipantID, typ protocol.Type, data []byte) {
	var p protocol.Toggle
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad toggle payload")
		return
	}
	p.Type = typ
	p.Participant = pid
	ctl.Registry.BroadcastFrom(pid, p)
}

func (ctl *Controller) handleScreenShare(pid domain.ParticipantID, data []byte) {
	var p protocol.Toggle
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad screen-share payload")
		return
	}
	p.Type = protocol.TypeScreenShare
	p.Participant = pid
	ctl.Registry.BroadcastFrom(pid, p)
}

// handleWhiteboard is a pure passthrough of drawing coordinates.
func (ctl *Controller) handleWhiteboard(pid domain.ParticipantID, data []byte) {
	var p protocol.WhiteboardUpdate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad whiteboard payload")
		return
	}
	ctl.Registry.BroadcastFrom(pid, p)
}
