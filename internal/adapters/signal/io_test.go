package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
)

// The configured ping period drives the server-side keepalive.
func TestWritePumpSendsKeepalivePings(t *testing.T) {
	ctl := NewController(app.NewRegistry(), &config.Config{PingPeriod: 20 * time.Millisecond})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		conn := &wsConn{conn: ws, send: make(chan core.Frame, 4)}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctl.writePump(ctx, conn)
	}))
	defer srv.Close()

	dial := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(dial, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	pings := 0
	client.SetPingHandler(func(string) error {
		pings++
		return nil
	})
	_ = client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	for {
		if _, _, err := client.ReadMessage(); err != nil {
			break
		}
	}

	if pings < 2 {
		t.Fatalf("pings = %d, want at least 2", pings)
	}
}

func TestPingPeriodFallback(t *testing.T) {
	ctl := NewController(app.NewRegistry(), &config.Config{})
	if got := ctl.pingPeriod(); got != 54*time.Second {
		t.Fatalf("pingPeriod = %v, want 54s", got)
	}
	ctl.Cfg.PingPeriod = time.Minute
	if got := ctl.pingPeriod(); got != time.Minute {
		t.Fatalf("pingPeriod = %v, want 1m", got)
	}
}
