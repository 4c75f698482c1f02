package protocol

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Daultz/elemental-duo-multiplayer/domain"
	"github.com/Daultz/elemental-duo-multiplayer/relay"
	"github.com/Daultz/elemental-duo-multiplayer/session"
)

// Handler decodes inbound frames and dispatches them to the session
// manager and relay engine.
type Handler struct {
	sessions *session.Manager
	relay    *relay.Engine
}

func NewHandler(sessions *session.Manager, engine *relay.Engine) *Handler {
	return &Handler{sessions: sessions, relay: engine}
}

type pongReply struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Handle processes one inbound frame. Any panic is contained here so a
// malformed message cannot take down the connection's read pump or
// touch other sessions.
func (h *Handler) Handle(conn domain.Connection, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panic", "clientId", conn.ID(), "panic", r)
		}
	}()

	var msg domain.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("invalid message", "clientId", conn.ID(), "error", err)
		return
	}

	switch msg.Type {
	case "ping":
		h.send(conn, pongReply{Type: "pong", Timestamp: msg.Timestamp})
	case "join":
		h.handleJoin(conn, msg)
	case "input":
		h.relay.Input(conn, msg.Keys, time.Now())
	case "position":
		h.relay.Position(conn, msg.X, msg.Y, msg.VelX, msg.VelY, time.Now())
	case "levelComplete":
		if role, ok := h.sessions.CompleteLevel(conn.ID()); ok {
			h.broadcastFrom(conn, domain.LevelEvent{Type: "levelComplete", Role: role})
		}
	case "restartLevel":
		if role, ok := h.sessions.RestartLevel(conn.ID()); ok {
			h.broadcastFrom(conn, domain.LevelEvent{Type: "restartLevel", Role: role})
		}
	case "nextLevel":
		if role, level, ok := h.sessions.AdvanceLevel(conn.ID()); ok {
			h.broadcastFrom(conn, domain.LevelEvent{Type: "nextLevel", Role: role, Level: level})
		}
	default:
		slog.Debug("unknown message type", "clientId", conn.ID(), "type", msg.Type)
	}
}

func (h *Handler) handleJoin(conn domain.Connection, msg domain.ClientMessage) {
	res, err := h.sessions.Join(conn, msg.SessionID, msg.Name)
	switch {
	case errors.Is(err, domain.ErrSessionFull):
		h.send(conn, domain.ErrorReply{Type: "sessionFull", Message: "session already has two players"})
		return
	case err != nil:
		h.send(conn, domain.ErrorReply{Type: "error", Message: err.Error()})
		return
	}

	h.send(conn, domain.PlayerAssigned{
		Type:      "playerAssigned",
		Role:      res.Role,
		SessionID: res.SessionID,
		Occupancy: res.Occupancy,
		Name:      res.Name,
	})
	h.broadcastFrom(conn, domain.PlayerJoined{
		Type:      "playerJoined",
		Role:      res.Role,
		Occupancy: res.Occupancy,
		Name:      res.Name,
	})
}

// HandleDisconnect releases the connection's slot and tells the
// remaining occupant. Safe to call for connections that never joined.
func (h *Handler) HandleDisconnect(conn domain.Connection) {
	res, ok := h.sessions.Leave(conn)
	if !ok || res.Occupancy == 0 {
		return
	}
	data, err := json.Marshal(domain.PlayerLeft{
		Type:      "playerLeft",
		Role:      res.Role,
		Occupancy: res.Occupancy,
		Name:      res.Name,
	})
	if err != nil {
		return
	}
	h.sessions.BroadcastToSession(res.SessionID, data)
}

func (h *Handler) send(conn domain.Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("send failed", "clientId", conn.ID(), "error", err)
	}
}

func (h *Handler) broadcastFrom(conn domain.Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	h.sessions.BroadcastFrom(conn.ID(), data)
}
