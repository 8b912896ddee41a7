package app

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

type fakeConn struct {
	frames []core.Frame
	fail   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	if c.fail {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func (c *fakeConn) types(t *testing.T) []protocol.Type {
	t.Helper()
	out := make([]protocol.Type, 0, len(c.frames))
	for _, f := range c.frames {
		typ, err := protocol.ParseType(f)
		if err != nil {
			t.Fatalf("bad frame %q: %v", f, err)
		}
		out = append(out, typ)
	}
	return out
}

// lastAck returns the most recent room-joined frame on the connection.
func (c *fakeConn) lastAck(t *testing.T) protocol.RoomJoined {
	t.Helper()
	for i := len(c.frames) - 1; i >= 0; i-- {
		typ, err := protocol.ParseType(c.frames[i])
		if err != nil {
			t.Fatal(err)
		}
		if typ != protocol.TypeRoomJoined {
			continue
		}
		var ack protocol.RoomJoined
		if err := json.Unmarshal(c.frames[i], &ack); err != nil {
			t.Fatal(err)
		}
		return ack
	}
	t.Fatal("no room-joined frame received")
	return protocol.RoomJoined{}
}

func bind(t *testing.T, r *Registry, pid, name string) *fakeConn {
	t.Helper()
	p, err := domain.NewParticipant(domain.ParticipantID(pid), name)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	conn := &fakeConn{}
	r.Bind(core.NewMemberSession(p, conn))
	return conn
}

func memberIDs(members []protocol.Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, string(m.ID))
	}
	sort.Strings(ids)
	return ids
}

func TestJoinValidation(t *testing.T) {
	r := NewRegistry()
	bind(t, r, "a", "alice")

	tests := []struct {
		name    string
		room    domain.RoomID
		pid     domain.ParticipantID
		wantErr error
	}{
		{name: "empty room", room: "", pid: "a", wantErr: domain.ErrRoomIDEmpty},
		{name: "long room", room: domain.RoomID(strings.Repeat("r", 51)), pid: "a", wantErr: domain.ErrRoomIDTooLong},
		{name: "unknown participant", room: "room-1", pid: "ghost", wantErr: domain.ErrParticipantIDEmpty},
		{name: "ok", room: "room-1", pid: "a", wantErr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Join(tt.room, tt.pid); err != tt.wantErr {
				t.Errorf("Join() err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJoinAcksFullMemberSet(t *testing.T) {
	r := NewRegistry()
	connA := bind(t, r, "a", "alice")
	connB := bind(t, r, "b", "bob")

	if err := r.Join("room-1", "a"); err != nil {
		t.Fatal(err)
	}
	ackA := connA.lastAck(t)
	if got := memberIDs(ackA.Members); len(got) != 1 || got[0] != "a" {
		t.Fatalf("first join members = %v, want [a]", got)
	}
	if ackA.Self != "a" || ackA.Room != "room-1" {
		t.Fatalf("ack = %+v", ackA)
	}

	if err := r.Join("room-1", "b"); err != nil {
		t.Fatal(err)
	}
	ackB := connB.lastAck(t)
	if got := memberIDs(ackB.Members); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("second join members = %v, want [a b]", got)
	}

	// A must have been told about B, and never about itself.
	types := connA.types(t)
	if len(types) != 2 || types[1] != protocol.TypeParticipantJoined {
		t.Fatalf("a received %v, want [room-joined participant-joined]", types)
	}
	var joined protocol.ParticipantJoined
	if err := json.Unmarshal(connA.frames[1], &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Participant != "b" || joined.DisplayName != "bob" {
		t.Errorf("participant-joined = %+v", joined)
	}
}

// The join ack is enqueued inside the registry's critical section, so a
// joiner always sees its own ack before any broadcast caused by a later
// membership change.
func TestJoinAckPrecedesLaterBroadcasts(t *testing.T) {
	r := NewRegistry()
	bind(t, r, "a", "alice")
	connB := bind(t, r, "b", "bob")
	bind(t, r, "c", "carol")

	for _, pid := range []domain.ParticipantID{"a", "b", "c"} {
		if err := r.Join("room-1", pid); err != nil {
			t.Fatal(err)
		}
	}

	types := connB.types(t)
	if len(types) != 2 || types[0] != protocol.TypeRoomJoined || types[1] != protocol.TypeParticipantJoined {
		t.Fatalf("b received %v, want its ack first, then carol's join", types)
	}
	ack := connB.lastAck(t)
	if got := memberIDs(ack.Members); len(got) != 2 {
		t.Fatalf("b ack members = %v, want [a b]", got)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	connA := bind(t, r, "a", "alice")
	connB := bind(t, r, "b", "bob")
	if err := r.Join("room-1", "a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Join("room-1", "b"); err != nil {
		t.Fatal(err)
	}
	before := len(connB.frames)

	sent := r.BroadcastFrom("b", protocol.Toggle{
		Type: protocol.TypeToggleAudio, Participant: "b", Enabled: false, Room: "room-1",
	})
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(connB.frames) != before {
		t.Error("sender received its own broadcast")
	}
	types := connA.types(t)
	if types[len(types)-1] != protocol.TypeToggleAudio {
		t.Errorf("a last frame = %v, want toggle-audio", types[len(types)-1])
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	r := NewRegistry()
	bind(t, r, "a", "alice")
	bind(t, r, "b", "bob")
	if err := r.Join("room-1", "a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Join("room-1", "b"); err != nil {
		t.Fatal(err)
	}
	if r.RoomCount() != 1 {
		t.Fatalf("RoomCount = %d, want 1", r.RoomCount())
	}

	if roomID, ok := r.Leave("a"); !ok || roomID != "room-1" {
		t.Fatalf("Leave(a) = %q, %v", roomID, ok)
	}
	if r.RoomCount() != 1 {
		t.Fatal("room deleted while still populated")
	}
	r.Leave("b")
	if r.RoomCount() != 0 {
		t.Fatalf("RoomCount after last leave = %d, want 0", r.RoomCount())
	}
}

func TestDisconnectNotifiesRemaining(t *testing.T) {
	r := NewRegistry()
	connA := bind(t, r, "a", "alice")
	connB := bind(t, r, "b", "bob")
	bind(t, r, "c", "carol")
	for _, pid := range []domain.ParticipantID{"a", "b", "c"} {
		if err := r.Join("room-1", pid); err != nil {
			t.Fatal(err)
		}
	}

	r.Unbind("c")

	for name, conn := range map[string]*fakeConn{"a": connA, "b": connB} {
		types := conn.types(t)
		last := types[len(types)-1]
		if last != protocol.TypeParticipantLeft {
			t.Errorf("%s last frame = %v, want participant-left", name, last)
		}
	}
	if _, ok := r.Session("c"); ok {
		t.Error("session for c still bound")
	}
	if _, ok := r.RoomOf("c"); ok {
		t.Error("c still mapped to a room")
	}
}

func TestSingleRoomMembership(t *testing.T) {
	r := NewRegistry()
	bind(t, r, "a", "alice")
	bind(t, r, "b", "bob")
	if err := r.Join("room-1", "a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Join("room-1", "b"); err != nil {
		t.Fatal(err)
	}

	// Joining a second room implicitly leaves the first.
	if err := r.Join("room-2", "a"); err != nil {
		t.Fatal(err)
	}
	if got := memberIDs(r.Members("room-1")); len(got) != 1 || got[0] != "b" {
		t.Fatalf("room-1 members = %v, want [b]", got)
	}
	if roomID, _ := r.RoomOf("a"); roomID != "room-2" {
		t.Fatalf("RoomOf(a) = %q, want room-2", roomID)
	}
}

func TestBroadcastSkipsSlowConsumer(t *testing.T) {
	r := NewRegistry()
	bind(t, r, "a", "alice")
	connB := bind(t, r, "b", "bob")
	connB.fail = true
	if err := r.Join("room-1", "b"); err != nil {
		t.Fatal(err)
	}
	if err := r.Join("room-1", "a"); err != nil {
		t.Fatal(err)
	}

	sent := r.BroadcastFrom("a", protocol.Toggle{Type: protocol.TypeToggleVideo, Participant: "a", Room: "room-1"})
	if sent != 0 {
		t.Fatalf("sent = %d, want 0", sent)
	}
}
