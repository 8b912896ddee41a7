package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, pid domain.ParticipantID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("pid", string(pid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("pid", string(pid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(pid, c, data)
		}
	}
}

func (ctl *Controller) handleSignal(pid domain.ParticipantID, c *wsConn, data []byte) {
	typ, err := protocol.ParseType(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch typ {
	case protocol.TypeJoinRoom:
		ctl.handleJoin(pid, c, data)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(pid, c)
	case protocol.TypeOffer:
		ctl.handleOffer(pid, data)
	case protocol.TypeAnswer:
		ctl.handleAnswer(pid, data)
	case protocol.TypeICECandidate:
		ctl.handleCandidate(pid, data)
	case protocol.TypeToggleAudio, protocol.TypeToggleVideo:
		ctl.handleToggle(pid, typ, data)
	case protocol.TypeScreenShare:
		ctl.handleScreenShare(pid, data)
	case protocol.TypeWhiteboardUpdate:
		ctl.handleWhiteboard(pid, data)
	default:
		log.Warn().Str("module", "signal").Str("type", string(typ)).Msg("unknown signal")
	}
}
