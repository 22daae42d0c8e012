package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peergrid/beacon/internal/core"
	"github.com/peergrid/beacon/internal/domain"
	"github.com/peergrid/beacon/internal/protocol"
)

func (ctl *Controller) writePump(c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drives the relay loop. Whatever ends it — remote close,
// transport error, context cancellation — the participant departs its room
// exactly once before the connection is torn down.
func (ctl *Controller) readPump(ctx context.Context, room *core.Room, id domain.ClientID, c *wsConn) {
	defer func() {
		room.Depart(id)
		c.Close()
		log.Info().Str("module", "signal").Str("client", string(id)).Msg("relay loop closed")
	}()

	pongWait := ctl.cfg.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("client", string(id)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, room, id, data)
		}
	}
}

// dispatch classifies one inbound frame. Malformed or unrecognized frames
// are dropped without a response.
func (ctl *Controller) dispatch(ctx context.Context, room *core.Room, id domain.ClientID, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad json frame")
		return
	}

	switch {
	case env.Type == protocol.KindChat:
		var m protocol.ChatIn
		if err := json.Unmarshal(data, &m); err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("bad chat frame")
			return
		}
		room.BroadcastChat(ctx, id, m.Message)

	case protocol.IsSignaling(env.Type):
		var d protocol.Directed
		if err := json.Unmarshal(data, &d); err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("bad signaling frame")
			return
		}
		if d.TargetID == "" {
			return
		}
		room.RelayDirected(d.TargetID, data)

	case env.Type == protocol.KindJoin:
		// Client hello after the upgrade; admission already happened.

	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown frame kind")
	}
}
