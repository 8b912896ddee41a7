package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/auth"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller accepts signaling websockets and relays room membership,
// offers, answers and candidates between participants.
type Controller struct {
	Registry *app.Registry
	Cfg      *config.Config
}

func NewController(reg *app.Registry, cfg *config.Config) *Controller {
	return &Controller{Registry: reg, Cfg: cfg}
}

func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.Cfg.PingPeriod > 0 {
		return ctl.Cfg.PingPeriod
	}
	return 54 * time.Second
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection, assigns a connection-scoped
// participant id and runs the read/write pumps until disconnect.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)
	pongWait := ctl.pingPeriod() * 10 / 9
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	pid := domain.NewParticipantID()
	participant, err := domain.NewParticipant(pid, id.Username)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad participant")
		_ = ws.Close()
		return
	}
	log.Info().Str("module", "signal").
		Str("pid", string(pid)).
		Str("user", id.UserID).
		Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Registry.Bind(core.NewMemberSession(participant, conn))

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ctl.writePump(ctx, conn)
		cancel()
	}()
	go func() {
		ctl.readPump(ctx, pid, conn)
		cancel()
		ctl.Registry.Unbind(pid)
	}()
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
