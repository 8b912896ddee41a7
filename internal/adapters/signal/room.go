package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func (ctl *Controller) handleJoin(pid domain.ParticipantID, conn *wsConn, data []byte) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, protocol.RoomJoined{
			Type:  protocol.TypeRoomJoined,
			Self:  pid,
			Error: "bad_payload",
		})
		return
	}

	// On success the registry enqueues the ack itself, atomically with
	// the membership change.
	if err := ctl.Registry.Join(p.Room, pid); err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("pid", string(pid)).
			Str("room", string(p.Room)).
			Msg("join rejected")
		ctl.sendJSON(conn, protocol.RoomJoined{
			Type:  protocol.TypeRoomJoined,
			Room:  p.Room,
			Self:  pid,
			Error: err.Error(),
		})
	}
}

// handleLeave exits the current room; the connection stays up.
func (ctl *Controller) handleLeave(pid domain.ParticipantID, conn *wsConn) {
	log.Info().Str("module", "signal").Str("pid", string(pid)).Msg("leave")
	ctl.Registry.Leave(pid)
}
