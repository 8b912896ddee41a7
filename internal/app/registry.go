package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Registry is the source of truth for "who is in this room". It owns
// room membership and performs membership broadcasts under its own lock,
// so an observer never sees a broadcast for a change it cannot query
// consistently afterward. State is process-lifetime only.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]core.MemberSession
	rooms    map[domain.RoomID]map[domain.ParticipantID]struct{}
	roomOf   map[domain.ParticipantID]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ParticipantID]core.MemberSession),
		rooms:    make(map[domain.RoomID]map[domain.ParticipantID]struct{}),
		roomOf:   make(map[domain.ParticipantID]domain.RoomID),
	}
}

// Bind registers a connected participant before any room join.
func (r *Registry) Bind(sess core.MemberSession) {
	pid := sess.Participant().ID
	r.mu.Lock()
	r.sessions[pid] = sess
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("bound session")
}

// Unbind removes the participant entirely, leaving its room first.
func (r *Registry) Unbind(pid domain.ParticipantID) {
	r.Leave(pid)
	r.mu.Lock()
	delete(r.sessions, pid)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("pid", string(pid)).Msg("unbound session")
}

// Session returns the transport session for a participant, used for
// targeted unicast relay.
func (r *Registry) Session(pid domain.ParticipantID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[pid]
	return sess, ok
}

// Join validates the room id, adds the participant to the room (leaving
// any previous room first: a participant belongs to at most one room)
// and notifies the other members. The room-joined ack is enqueued on the
// joiner's connection inside the same critical section, so no other
// membership broadcast can ever precede it on that connection.
func (r *Registry) Join(roomID domain.RoomID, pid domain.ParticipantID) error {
	if err := domain.ValidateRoomID(roomID); err != nil {
		return err
	}
	if pid == "" {
		return domain.ErrParticipantIDEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[pid]
	if !ok {
		return domain.ErrParticipantIDEmpty
	}

	if prev, ok := r.roomOf[pid]; ok {
		r.leaveLocked(pid, prev)
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[domain.ParticipantID]struct{})
		r.rooms[roomID] = members
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room created")
	}
	members[pid] = struct{}{}
	r.roomOf[pid] = roomID

	joined := protocol.ParticipantJoined{
		Type:        protocol.TypeParticipantJoined,
		Participant: pid,
		SocketID:    pid,
		DisplayName: sess.Participant().DisplayName,
	}
	r.broadcastLocked(roomID, pid, joined)

	ack := protocol.RoomJoined{
		Type:    protocol.TypeRoomJoined,
		Room:    roomID,
		Self:    pid,
		Members: r.membersLocked(roomID),
	}
	data, err := json.Marshal(ack)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("ack marshal")
		return nil
	}
	if err := sess.Signal().TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").
			Str("pid", string(pid)).Msg("ack dropped")
	}

	log.Info().Str("module", "app.registry").
		Str("pid", string(pid)).
		Str("room", string(roomID)).
		Int("members", len(members)).
		Msg("joined room")

	return nil
}

// Leave removes the participant from whichever room contains it,
// notifies the remaining members and deletes the room once empty.
func (r *Registry) Leave(pid domain.ParticipantID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.roomOf[pid]
	if !ok {
		return "", false
	}
	r.leaveLocked(pid, roomID)
	return roomID, true
}

func (r *Registry) leaveLocked(pid domain.ParticipantID, roomID domain.RoomID) {
	members, ok := r.rooms[roomID]
	if ok {
		delete(members, pid)
		if len(members) == 0 {
			delete(r.rooms, roomID)
			log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room deleted")
		}
	}
	delete(r.roomOf, pid)

	left := protocol.ParticipantLeft{
		Type:        protocol.TypeParticipantLeft,
		Participant: pid,
	}
	r.broadcastLocked(roomID, pid, left)

	log.Info().Str("module", "app.registry").
		Str("pid", string(pid)).
		Str("room", string(roomID)).
		Msg("left room")
}

// RoomOf reports the room currently containing the participant.
func (r *Registry) RoomOf(pid domain.ParticipantID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[pid]
	return roomID, ok
}

// Members returns a snapshot of the room's member set.
func (r *Registry) Members(roomID domain.RoomID) []protocol.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(roomID)
}

func (r *Registry) membersLocked(roomID domain.RoomID) []protocol.Member {
	ids, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]protocol.Member, 0, len(ids))
	for pid := range ids {
		if sess, ok := r.sessions[pid]; ok {
			p := sess.Participant()
			out = append(out, protocol.Member{ID: p.ID, Name: p.DisplayName})
		}
	}
	return out
}

// RoomCount reports how many rooms currently exist; empty rooms must
// never linger.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// BroadcastFrom relays an already-typed payload to every member of the
// sender's room except the sender. Returns the number of deliveries.
func (r *Registry) BroadcastFrom(pid domain.ParticipantID, v any) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[pid]
	if !ok {
		return 0
	}
	return r.broadcastLocked(roomID, pid, v)
}

// broadcastLocked fans out v to every room member except from. TrySend
// is non-blocking; slow consumers are counted and dropped, never waited on.
func (r *Registry) broadcastLocked(roomID domain.RoomID, from domain.ParticipantID, v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("broadcast marshal")
		return 0
	}
	sent := 0
	for pid := range r.rooms[roomID] {
		if pid == from {
			continue
		}
		sess, ok := r.sessions[pid]
		if !ok {
			continue
		}
		if err := sess.Signal().TrySend(core.Frame(data)); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").
				Str("to", string(pid)).Msg("broadcast dropped")
			continue
		}
		sent++
	}
	return sent
}
