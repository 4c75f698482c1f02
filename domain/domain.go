package domain

import (
	"encoding/json"
	"errors"
)

// Role identifies one of the two fixed player slots in a session.
type Role string

const (
	RoleFire  Role = "fire"
	RoleWater Role = "water"
)

// Phase tracks a session's progress through a level.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePlaying  Phase = "playing"
	PhaseComplete Phase = "complete"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidIdentifier = errors.New("invalid session identifier")
	ErrSessionFull       = errors.New("session full")
)

// ClientMessage is the inbound wire envelope. Fields beyond Type are
// populated depending on the message kind.
type ClientMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Keys      json.RawMessage `json:"keys,omitempty"`
	X         float64         `json:"x,omitempty"`
	Y         float64         `json:"y,omitempty"`
	VelX      float64         `json:"velX,omitempty"`
	VelY      float64         `json:"velY,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

type PlayerAssigned struct {
	Type      string `json:"type"`
	Role      Role   `json:"role"`
	SessionID string `json:"sessionId"`
	Occupancy int    `json:"occupancy"`
	Name      string `json:"name"`
}

type PlayerJoined struct {
	Type      string `json:"type"`
	Role      Role   `json:"role"`
	Occupancy int    `json:"occupancy"`
	Name      string `json:"name"`
}

type PlayerLeft struct {
	Type      string `json:"type"`
	Role      Role   `json:"role"`
	Occupancy int    `json:"occupancy"`
	Name      string `json:"name"`
}

type InputEvent struct {
	Type      string          `json:"type"`
	Role      Role            `json:"role"`
	Keys      json.RawMessage `json:"keys"`
	Timestamp int64           `json:"timestamp"`
}

type PositionEvent struct {
	Type      string  `json:"type"`
	Role      Role    `json:"role"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelX      float64 `json:"velX"`
	VelY      float64 `json:"velY"`
	Timestamp int64   `json:"timestamp"`
}

type LevelEvent struct {
	Type  string `json:"type"`
	Role  Role   `json:"role"`
	Level int    `json:"level,omitempty"`
}

type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Connection is the transport capability the core relies on: an opaque
// identifier plus a non-blocking send.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// MessageHandler processes inbound frames and disconnects for a connection.
type MessageHandler interface {
	Handle(conn Connection, data []byte)
	HandleDisconnect(conn Connection)
}
