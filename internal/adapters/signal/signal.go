// Package signal owns the lifetime of one upgraded relay connection: token
// admission, the read/write pumps and dispatch of the wire protocol.
package signal

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peergrid/beacon/internal/config"
	"github.com/peergrid/beacon/internal/core"
	"github.com/peergrid/beacon/internal/domain"
	"github.com/peergrid/beacon/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	registry *core.Registry
	cfg      *config.Config
}

func NewController(reg *core.Registry, cfg *config.Config) *Controller {
	return &Controller{registry: reg, cfg: cfg}
}

// wsConn is the buffered outbound half of a connection. A single writePump
// drains send, so frames from different rooms' tasks never interleave on
// the wire.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return net.ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// Handle upgrades the request and runs the connection state machine:
// admit by token, send ready, relay until the loop exits, then depart
// exactly once.
func (ctl *Controller) Handle(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room_id"))
	token := c.Query("token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("ws upgrade failed")
		return
	}

	conn := &wsConn{conn: ws, send: make(chan []byte, ctl.cfg.SendBuffer)}
	room := ctl.registry.GetOrCreate(roomID)

	p, count, err := room.Admit(token, conn)
	if err != nil {
		ctl.reject(ws, err)
		return
	}

	ready, _ := json.Marshal(protocol.Ready{
		Type:             protocol.KindReady,
		ClientID:         p.ID,
		ParticipantCount: count,
	})
	_ = conn.TrySend(ready)

	go ctl.writePump(conn)
	ctl.readPump(c.Request.Context(), room, p.ID, conn)
}

// reject sends a single terminal message and closes; no relay loop runs.
// The write happens synchronously because no pump owns this connection.
func (ctl *Controller) reject(ws *websocket.Conn, admitErr error) {
	var out any
	if errors.Is(admitErr, domain.ErrRoomFull) {
		out = protocol.RoomFull{Type: protocol.KindRoomFull}
	} else {
		out = protocol.ErrorMsg{Type: protocol.KindError, Message: admitErr.Error()}
	}
	data, _ := json.Marshal(out)
	_ = ws.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
	_ = ws.WriteMessage(websocket.TextMessage, data)
	_ = ws.Close()
	log.Info().Err(admitErr).Str("module", "signal").Msg("admission rejected")
}
