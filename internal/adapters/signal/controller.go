// Package signal adapts the websocket transport to the relay: one connection
// per participant, a read pump that feeds inbound envelopes to the relay and
// a write pump that drains the outbound queue with keepalive pings.
package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/dkeye/Duet/internal/relay"
)

const (
	sendQueueSize = 32
	writeWait     = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Controller struct {
	relay      *relay.Relay
	table      *ConnTable
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(rel *relay.Relay, table *ConnTable, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		relay:      rel,
		table:      table,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// HandleSignal upgrades the request and runs the connection until it drops.
// Each connection gets a fresh participant identity; identities are never
// reused.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	pid := domain.NewParticipantID()
	conn := newWSConn(ws)
	ctl.table.bind(pid, conn)
	log.Info().Str("module", "signal").Str("participant", string(pid)).Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, pid, conn)
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, pid domain.ParticipantID, c *wsConn) {
	defer func() {
		cancel()
		ctl.table.unbind(pid)
		ctl.relay.Disconnect(pid)
		c.Close()
		log.Info().Str("module", "signal").Str("participant", string(pid)).Msg("disconnected")
	}()

	pongWait := ctl.pingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("read error")
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("participant", string(pid)).Msg("bad json")
			_ = ctl.table.Send(pid, protocol.Message{Type: protocol.EventError, Error: "malformed message"})
			continue
		}
		ctl.relay.HandleMessage(pid, msg)
	}
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
