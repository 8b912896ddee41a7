package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Type
		wantErr bool
	}{
		{"join room", `{"type":"join-room","roomId":"demo"}`, TypeJoinRoom, false},
		{"offer", `{"type":"offer","sdp":"v=0","to":"p2"}`, TypeOffer, false},
		{"unknown type passes through", `{"type":"something-new"}`, Type("something-new"), false},
		{"missing type", `{"roomId":"demo"}`, Type(""), false},
		{"not json", `nope`, Type(""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("type = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWhiteboardDataIsOpaque(t *testing.T) {
	frame := `{"type":"whiteboard-update","data":{"stroke":[[0,1],[2,3]],"color":"#fff"},"roomId":"demo"}`
	var p WhiteboardUpdate
	if err := json.Unmarshal([]byte(frame), &p); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	// The payload must survive the relay byte-for-byte.
	var orig, relayed map[string]any
	if err := json.Unmarshal([]byte(frame), &orig); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &relayed); err != nil {
		t.Fatal(err)
	}
	if len(relayed) != len(orig) {
		t.Fatalf("relayed frame lost fields: %s", out)
	}
}
