package signaling

import (
	"testing"
)

func TestDecodeKnownFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "room joined with members",
			frame: `{"type":"room-joined","roomId":"demo","participantId":"p1","members":[{"id":"p1","name":"me"},{"id":"p2","name":"alice"}]}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(RoomJoined)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if e.Room != "demo" || e.Self != "p1" || len(e.Members) != 2 {
					t.Fatalf("bad event: %+v", e)
				}
			},
		},
		{
			name:  "room joined rejection",
			frame: `{"type":"room-joined","roomId":"x","error":"room id empty"}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(RoomJoined)
				if !ok || e.Err != "room id empty" {
					t.Fatalf("got %#v", ev)
				}
			},
		},
		{
			name:  "participant joined",
			frame: `{"type":"participant-joined","participantId":"p9","displayName":"zoe"}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(ParticipantJoined)
				if !ok || e.ID != "p9" || e.DisplayName != "zoe" {
					t.Fatalf("got %#v", ev)
				}
			},
		},
		{
			name:  "offer carries sender and sdp",
			frame: `{"type":"offer","sdp":"v=0...","from":"p2","to":"p1","roomId":"demo"}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(OfferReceived)
				if !ok || e.From != "p2" || e.SDP != "v=0..." {
					t.Fatalf("got %#v", ev)
				}
			},
		},
		{
			name:  "candidate",
			frame: `{"type":"ice-candidate","candidate":{"candidate":"candidate:1 1 udp"},"from":"p2","to":"p1"}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(CandidateReceived)
				if !ok || e.From != "p2" || e.Candidate.Candidate == "" {
					t.Fatalf("got %#v", ev)
				}
			},
		},
		{
			name:  "toggle video disabled",
			frame: `{"type":"toggle-video","participantId":"p2","enabled":false}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(PeerToggle)
				if !ok || e.Participant != "p2" || e.Enabled {
					t.Fatalf("got %#v", ev)
				}
			},
		},
		{
			name:  "server error",
			frame: `{"type":"error","error":"bad_payload"}`,
			check: func(t *testing.T, ev Event) {
				e, ok := ev.(ServerError)
				if !ok || e.Message != "bad_payload" {
					t.Fatalf("got %#v", ev)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := decode([]byte(tt.frame))
			if ev == nil {
				t.Fatal("frame dropped")
			}
			tt.check(t, ev)
		})
	}
}

func TestDecodeIgnoresUnknownAndMalformed(t *testing.T) {
	frames := []string{
		`not json`,
		`{"type":"whiteboard-update","data":{"stroke":[1,2]}}`,
		`{"type":"made-up"}`,
	}
	for _, frame := range frames {
		if ev := decode([]byte(frame)); ev != nil {
			t.Errorf("frame %q produced %#v, want nil", frame, ev)
		}
	}
}
