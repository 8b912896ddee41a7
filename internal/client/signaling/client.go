// Package signaling is the client side of the signaling channel: one
// ordered, bidirectional websocket stream carrying the room and
// negotiation messages of the protocol package.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket connection to the signaling server.
type Client struct {
	serverURL string
	token     string

	conn     *websocket.Conn
	events   chan Event
	outgoing chan []byte
	done     chan struct{}

	// dead closes when either pump exits; nothing drains outgoing after
	// that, so senders must stop blocking on it.
	dead     chan struct{}
	deadOnce sync.Once

	mu     sync.Mutex
	closed bool
}

func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: serverURL,
		token:     token,
		events:    make(chan Event, 32),
		outgoing:  make(chan []byte, 32),
		done:      make(chan struct{}),
		dead:      make(chan struct{}),
	}
}

// Connect dials the server and starts the read/write pumps. The bearer
// token rides on the dial URL; an invalid one is rejected before the
// upgrade.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return nil
}

// Events returns the ordered stream of decoded server messages. The
// channel is closed after a Disconnected event.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) markDead() {
	c.deadOnce.Do(func() { close(c.dead) })
}

func (c *Client) readPump() {
	defer func() {
		c.markDead()
		_ = c.conn.Close()
		close(c.events)
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.events <- Disconnected{Err: err}
			return
		}
		if ev := decode(data); ev != nil {
			c.events <- ev
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		c.markDead()
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func decode(data []byte) Event {
	typ, err := protocol.ParseType(data)
	if err != nil {
		log.Error().Err(err).Str("module", "client.signaling").Msg("bad frame")
		return nil
	}
	switch typ {
	case protocol.TypeRoomJoined:
		var p protocol.RoomJoined
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return RoomJoined{Room: p.Room, Self: p.Self, Members: p.Members, Err: p.Error}
	case protocol.TypeParticipantJoined:
		var p protocol.ParticipantJoined
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return ParticipantJoined{ID: p.Participant, DisplayName: p.DisplayName}
	case protocol.TypeParticipantLeft:
		var p protocol.ParticipantLeft
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return ParticipantLeft{ID: p.Participant}
	case protocol.TypeOffer:
		var p protocol.Offer
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return OfferReceived{From: p.From, Room: p.Room, SDP: p.SDP}
	case protocol.TypeAnswer:
		var p protocol.Answer
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return AnswerReceived{From: p.From, SDP: p.SDP}
	case protocol.TypeICECandidate:
		var p protocol.ICECandidate
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return CandidateReceived{From: p.From, Candidate: p.Candidate}
	case protocol.TypeToggleAudio, protocol.TypeToggleVideo, protocol.TypeScreenShare:
		var p protocol.Toggle
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return PeerToggle{Kind: typ, Participant: p.Participant, Enabled: p.Enabled}
	case protocol.TypeError:
		var p protocol.Error
		if err := json.Unmarshal(data, &p); err != nil {
			break
		}
		return ServerError{Message: p.Error}
	default:
		log.Debug().Str("module", "client.signaling").Str("type", string(typ)).Msg("ignored frame")
	}
	return nil
}

func (c *Client) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// A dead transport never drains outgoing; fail fast instead of
	// filling the buffer and parking the caller.
	select {
	case <-c.dead:
		return fmt.Errorf("signaling transport down")
	case <-c.done:
		return fmt.Errorf("signaling channel closed")
	default:
	}
	select {
	case c.outgoing <- data:
		return nil
	case <-c.dead:
		return fmt.Errorf("signaling transport down")
	case <-c.done:
		return fmt.Errorf("signaling channel closed")
	}
}

func (c *Client) JoinRoom(room domain.RoomID) error {
	return c.send(protocol.JoinRoom{Type: protocol.TypeJoinRoom, Room: room})
}

func (c *Client) LeaveRoom() error {
	return c.send(protocol.LeaveRoom{Type: protocol.TypeLeaveRoom})
}

func (c *Client) SendOffer(to domain.ParticipantID, room domain.RoomID, sdp string) error {
	return c.send(protocol.Offer{Type: protocol.TypeOffer, SDP: sdp, To: to, Room: room})
}

func (c *Client) SendAnswer(to domain.ParticipantID, sdp string) error {
	return c.send(protocol.Answer{Type: protocol.TypeAnswer, SDP: sdp, To: to})
}

func (c *Client) SendCandidate(to domain.ParticipantID, cand webrtc.ICECandidateInit) error {
	return c.send(protocol.ICECandidate{Type: protocol.TypeICECandidate, Candidate: cand, To: to})
}

func (c *Client) SendToggle(kind protocol.Type, enabled bool, room domain.RoomID) error {
	return c.send(protocol.Toggle{Type: kind, Enabled: enabled, Room: room})
}

// Close stops the pumps and sends a close frame.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
