package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrUnknownPeer  = errors.New("unknown participant")
)

// wsConn wraps one websocket with a buffered outbound queue. TrySend never
// blocks; a full queue drops the frame and reports backpressure.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}
}

func (c *wsConn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
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

// ConnTable tracks live connections by participant identity and implements
// relay.Messenger. The relay is its only consumer.
type ConnTable struct {
	mu    sync.RWMutex
	conns map[domain.ParticipantID]*wsConn
}

func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[domain.ParticipantID]*wsConn)}
}

func (t *ConnTable) bind(pid domain.ParticipantID, c *wsConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[pid] = c
}

func (t *ConnTable) unbind(pid domain.ParticipantID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, pid)
}

// Send marshals and queues one envelope for a participant.
func (t *ConnTable) Send(pid domain.ParticipantID, msg protocol.Message) error {
	t.mu.RLock()
	c, ok := t.conns[pid]
	t.mu.RUnlock()
	if !ok {
		return ErrUnknownPeer
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.TrySend(frame)
}
