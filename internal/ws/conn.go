package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/ratelimiter"
	"github.com/notifyhub/realtime-notify/internal/registry"
	"github.com/notifyhub/realtime-notify/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBufferSize = 256
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errChannelClosed  = errors.New("channel closed")
)

// Conn adapts a gorilla websocket connection to the registry.Channel
// contract. Outbound events are queued on a buffered channel drained by the
// write pump; a full buffer fails the Emit instead of blocking fan-out.
//
// The send channel itself is never closed: fan-out goroutines holding a stale
// registry handle may Emit at any time, including after the client has gone.
// Shutdown is signalled through done instead, so a late Emit gets an error
// rather than a send-on-closed-channel panic.
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Emit implements registry.Channel.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errChannelClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send buffer onto the wire and keeps the connection
// alive with periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads inbound frames and hands them to the session, one at a time.
// When the transport closes for any reason the session is torn down.
func (c *Conn) readPump(session *Session) {
	defer func() {
		session.Teardown()
		c.close()
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			_ = c.Emit(registry.EventError, errorPayload{Message: "invalid message format"})
			continue
		}
		session.HandleEvent(env.Event, env.Data)
	}
}

// Handler upgrades HTTP requests to websocket connections and runs one
// session per connection.
type Handler struct {
	svc          *service.NotificationService
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	eventsPerSec int
}

func NewHandler(svc *service.NotificationService, logger *zap.Logger, eventsPerSec int) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Authentication and origin policy live in the fronting proxy;
			// the identify event binds the user identity.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		eventsPerSec: eventsPerSec,
	}
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(wsConn, h.logger)
	session := NewSession(conn, h.svc, ratelimiter.New(h.eventsPerSec), h.logger)

	go conn.writePump()
	go conn.readPump(session)
}
