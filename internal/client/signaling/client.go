// Package signaling is the client half of the relay channel: a websocket
// with typed send helpers and per-event callbacks.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/protocol"
)

// Handlers holds the per-event callbacks. Nil entries are skipped.
type Handlers struct {
	OnRoomJoined          func(roomCode string)
	OnRoomFull            func()
	OnWaitingForPartner   func()
	OnPartnerConnected    func()
	OnPartnerDisconnected func()
	OnChat                func(text string)
	OnOffer               func(sdp webrtc.SessionDescription)
	OnAnswer              func(sdp webrtc.SessionDescription)
	OnCandidate           func(cand webrtc.ICECandidateInit)
	OnError               func(reason string)
}

// Client is one participant's connection to the signaling server.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers

	mu       sync.Mutex
	roomCode string
	closed   bool
}

// Dial connects to the server's signaling endpoint.
func Dial(ctx context.Context, url string, handlers Handlers) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}
	return &Client{conn: conn, handlers: handlers}, nil
}

// Run reads and dispatches events until the connection drops or ctx ends.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("signaling read: %w", err)
			}
			return nil
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signaling").Msg("bad frame")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.EventRoomJoined:
		c.mu.Lock()
		c.roomCode = msg.RoomCode
		c.mu.Unlock()
		if c.handlers.OnRoomJoined != nil {
			c.handlers.OnRoomJoined(msg.RoomCode)
		}
	case protocol.EventRoomFull:
		if c.handlers.OnRoomFull != nil {
			c.handlers.OnRoomFull()
		}
	case protocol.EventWaitingForPartner:
		if c.handlers.OnWaitingForPartner != nil {
			c.handlers.OnWaitingForPartner()
		}
	case protocol.EventPartnerConnected:
		if c.handlers.OnPartnerConnected != nil {
			c.handlers.OnPartnerConnected()
		}
	case protocol.EventPartnerDisconnected:
		if c.handlers.OnPartnerDisconnected != nil {
			c.handlers.OnPartnerDisconnected()
		}
	case protocol.EventChatMessage:
		if c.handlers.OnChat != nil {
			c.handlers.OnChat(msg.Text)
		}
	case protocol.EventOffer:
		c.dispatchSDP(msg.Offer, c.handlers.OnOffer)
	case protocol.EventAnswer:
		c.dispatchSDP(msg.Answer, c.handlers.OnAnswer)
	case protocol.EventICECandidate:
		if c.handlers.OnCandidate == nil {
			return
		}
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(msg.Candidate, &cand); err != nil {
			log.Warn().Err(err).Str("module", "signaling").Msg("bad candidate payload")
			return
		}
		c.handlers.OnCandidate(cand)
	case protocol.EventError:
		if c.handlers.OnError != nil {
			c.handlers.OnError(msg.Error)
		}
	default:
		log.Warn().Str("module", "signaling").Str("type", string(msg.Type)).Msg("unknown event")
	}
}

func (c *Client) dispatchSDP(raw json.RawMessage, fn func(webrtc.SessionDescription)) {
	if fn == nil {
		return
	}
	var sdp webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sdp); err != nil {
		log.Warn().Err(err).Str("module", "signaling").Msg("bad description payload")
		return
	}
	fn(sdp)
}

// JoinRoom requests admission under a room code.
func (c *Client) JoinRoom(roomCode string) error {
	return c.write(protocol.Message{Type: protocol.EventJoinRoom, RoomCode: roomCode})
}

// SendChat relays a text line to the partner.
func (c *Client) SendChat(text string) error {
	return c.write(protocol.Message{Type: protocol.EventChatMessage, RoomCode: c.currentRoom(), Text: text})
}

func (c *Client) SendOffer(sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return c.write(protocol.Message{Type: protocol.EventOffer, RoomCode: c.currentRoom(), Offer: raw})
}

func (c *Client) SendAnswer(sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return c.write(protocol.Message{Type: protocol.EventAnswer, RoomCode: c.currentRoom(), Answer: raw})
}

func (c *Client) SendCandidate(cand webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	return c.write(protocol.Message{Type: protocol.EventICECandidate, RoomCode: c.currentRoom(), Candidate: raw})
}

func (c *Client) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Client) write(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("signaling client closed")
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close shuts the connection down. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
