package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var _ contract.EventSink = (*Conn)(nil)

// Conn is one live transport session. It is the connection's EventSink: the
// relay pushes events into the buffered send channel and the write pump
// drains it to the socket. The read pump dispatches inbound events to the
// relay serially, which is what serializes a connection's events.
type Conn struct {
	id        string
	socket    *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	relay     contract.IRelay
	log       *slog.Logger
}

func newConn(id string, socket *websocket.Conn, relay contract.IRelay, bufferSize int, log *slog.Logger) *Conn {
	return &Conn{
		id:     id,
		socket: socket,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		relay:  relay,
		log:    log,
	}
}

// Consume is called by the relay and the presence worker.
// A full buffer drops the event rather than blocking the caller: one slow
// connection must not delay delivery to the others.
func (c *Conn) Consume(ctx context.Context, e event.Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.log.Debug("Connection buffer full, event dropped", "conn_id", c.id, "event", e.Name())
		return nil
	}
}

// readPump decodes client frames and hands them to the relay in arrival
// order. It owns the read side of the socket and exits on any read error.
func (c *Conn) readPump(ctx context.Context) {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected socket close", "conn_id", c.id, "error", err)
			}
			return
		}
		c.dispatch(ctx, raw)
	}
}

// dispatch routes one inbound frame. Malformed frames are logged and
// ignored; they must never take the connection or the engine down.
func (c *Conn) dispatch(ctx context.Context, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("Dropping unreadable frame", "conn_id", c.id, "error", err)
		return
	}

	switch env.Event {
	case EventUserConnected:
		var p connectPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.log.Debug("Dropping malformed connect payload", "conn_id", c.id, "error", err)
			return
		}
		c.relay.Connect(p.UserID, p.Username, c.id, c)

	case EventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.log.Debug("Dropping malformed message payload", "conn_id", c.id, "error", err)
			return
		}
		c.relay.SendMessage(ctx, toCommand(p), c)

	case EventTyping:
		var p typingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.relay.Typing(domain.TypingCommand{
			To:       p.To,
			From:     p.From,
			Username: p.Username,
			IsTyping: p.IsTyping,
		})

	default:
		c.log.Debug(fmt.Sprintf("Unknown inbound event %q", env.Event))
	}
}

// writePump owns the write side of the socket: it drains the send channel
// and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close moves the connection to its terminal state. Both pumps call it on
// exit; the cleanup runs once, so processing the same closed connection
// twice cannot double-unregister or re-broadcast presence.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.socket.Close()
		c.relay.Disconnect(c.id)
	})
}
