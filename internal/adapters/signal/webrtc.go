package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// unicast forwards an already-validated frame to its target participant.
// A missing target is a transient artifact of churn, not an error.
func (ctl *Controller) unicast(to domain.ParticipantID, from domain.ParticipantID, v any) {
	sess, ok := ctl.Registry.Session(to)
	if !ok {
		log.Debug().Str("module", "signal").
			Str("to", string(to)).
			Str("from", string(from)).
			Msg("unicast target gone")
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("unicast marshal")
		return
	}
	if err := sess.Signal().TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("to", string(to)).
			Msg("unicast dropped")
	}
}

func (ctl *Controller) handleOffer(pid domain.ParticipantID, data []byte) {
	var p protocol.Offer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	p.From = pid
	ctl.unicast(p.To, pid, p)
}

func (ctl *Controller) handleAnswer(pid domain.ParticipantID, data []byte) {
	var p protocol.Answer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}
	p.From = pid
	ctl.unicast(p.To, pid, p)
}

func (ctl *Controller) handleCandidate(pid domain.ParticipantID, data []byte) {
	var p protocol.ICECandidate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	p.From = pid
	ctl.unicast(p.To, pid, p)
}
