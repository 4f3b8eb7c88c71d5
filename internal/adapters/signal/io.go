package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Conn) writePump(ctx context.Context) {
	var tick <-chan time.Time
	if c.opts.PingPeriod > 0 {
		ticker := time.NewTicker(c.opts.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	ping, _ := json.Marshal(Message{Type: TypePing})

	for {
		var data []byte
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case <-tick:
			data = ping
		case d, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			data = d
		}
		if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
			c.Close()
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
			c.Close()
			return
		}
	}
}

func (c *Conn) readPump(ctx context.Context, handler Handler) {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.Close()
		c.doneOnce.Do(func() { close(c.done) })
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		m, ok := Decode(data)
		if !ok {
			continue
		}
		if m.Type == TypePong {
			continue
		}
		handler(m)
	}
}

// Decode parses one frame. Frames without a type are dropped.
func Decode(data []byte) (Message, bool) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return Message{}, false
	}
	if m.Type == "" {
		log.Warn().Str("module", "signal").Msg("message without type")
		return Message{}, false
	}
	return m, true
}
