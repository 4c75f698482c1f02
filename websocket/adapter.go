package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Daultz/elemental-duo-multiplayer/config"
	"github.com/Daultz/elemental-duo-multiplayer/domain"
	"github.com/Daultz/elemental-duo-multiplayer/metrics"
)

// Conn adapts a gorilla websocket connection to domain.Connection.
// Sends go through a buffered channel drained by the write pump, so a
// Send never blocks the caller; a full buffer drops the frame.
type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	handler domain.MessageHandler
	cfg     config.WebSocketConfig
}

func NewConn(id string, ws *websocket.Conn, handler domain.MessageHandler, cfg config.WebSocketConfig) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, 256),
		handler: handler,
		cfg:     cfg,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() {
	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	// A connection with no inbound application traffic for the idle
	// window is forcibly closed; ping/pong keepalive does not count.
	idle := time.AfterFunc(c.cfg.IdleTimeout, func() {
		slog.Info("closing idle connection", "clientId", c.id)
		c.ws.Close()
	})

	defer func() {
		idle.Stop()
		c.handler.HandleDisconnect(c)
		c.ws.Close()
		metrics.ActiveConnections.Dec()
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		idle.Reset(c.cfg.IdleTimeout)
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	pingPeriod := (c.cfg.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
