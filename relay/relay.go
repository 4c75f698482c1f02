package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Daultz/elemental-duo-multiplayer/config"
	"github.com/Daultz/elemental-duo-multiplayer/domain"
	"github.com/Daultz/elemental-duo-multiplayer/metrics"
	"github.com/Daultz/elemental-duo-multiplayer/session"
)

// Outcome classifies what happened to an inbound gameplay event.
// RateLimited and Dropped are expected high-frequency noise and are
// never surfaced to the sender.
type Outcome int

const (
	Accepted Outcome = iota
	RateLimited
	Dropped
)

const (
	KindInput    = "input"
	KindPosition = "position"
)

// Engine validates, rate-limits and forwards the two high-frequency
// gameplay event kinds between session peers. Forwarding is
// fire-and-forget: it never blocks and never reports delivery failure
// to the sender.
type Engine struct {
	sessions *session.Manager
	cfg      config.RelayConfig
}

func New(sessions *session.Manager, cfg config.RelayConfig) *Engine {
	return &Engine{sessions: sessions, cfg: cfg}
}

func (e *Engine) minInterval(kind string) time.Duration {
	if kind == KindPosition {
		return e.cfg.PositionMinInterval
	}
	return e.cfg.InputMinInterval
}

// Input forwards an opaque key-state blob to the sender's peer, tagged
// with the sender's role and a server timestamp.
func (e *Engine) Input(conn domain.Connection, keys json.RawMessage, now time.Time) Outcome {
	role, status := e.sessions.AllowEvent(conn.ID(), KindInput, now, e.minInterval(KindInput))
	if out := toOutcome(status, KindInput); out != Accepted {
		return out
	}

	event := domain.InputEvent{
		Type:      KindInput,
		Role:      role,
		Keys:      keys,
		Timestamp: now.UnixMilli(),
	}
	e.forward(conn.ID(), KindInput, event)
	return Accepted
}

// Position clamps the reported coordinates and velocity into world
// bounds and forwards them to the sender's peer. Missing numeric
// fields arrive as zero from decoding.
func (e *Engine) Position(conn domain.Connection, x, y, velX, velY float64, now time.Time) Outcome {
	role, status := e.sessions.AllowEvent(conn.ID(), KindPosition, now, e.minInterval(KindPosition))
	if out := toOutcome(status, KindPosition); out != Accepted {
		return out
	}

	event := domain.PositionEvent{
		Type:      KindPosition,
		Role:      role,
		X:         clamp(x, 0, e.cfg.WorldWidth-e.cfg.PlayerWidth),
		Y:         clamp(y, 0, e.cfg.WorldHeight),
		VelX:      clamp(velX, -e.cfg.MaxVelX, e.cfg.MaxVelX),
		VelY:      clamp(velY, -e.cfg.MaxVelY, e.cfg.MaxVelY),
		Timestamp: now.UnixMilli(),
	}
	e.forward(conn.ID(), KindPosition, event)
	return Accepted
}

func (e *Engine) forward(senderID, kind string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("event marshal failed", "clientId", senderID, "kind", kind, "error", err)
		return
	}
	e.sessions.BroadcastFrom(senderID, data)
	metrics.EventsRelayed.WithLabelValues(kind).Inc()
}

func toOutcome(status session.EventStatus, kind string) Outcome {
	switch status {
	case session.EventRateLimited:
		metrics.EventsRateLimited.WithLabelValues(kind).Inc()
		return RateLimited
	case session.EventDropped:
		metrics.EventsDropped.WithLabelValues(kind).Inc()
		return Dropped
	}
	return Accepted
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
