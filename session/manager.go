package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Daultz/elemental-duo-multiplayer/domain"
	"github.com/Daultz/elemental-duo-multiplayer/metrics"
)

// EventStatus is the outcome of an inbound gameplay event check.
type EventStatus int

const (
	EventAccepted EventStatus = iota
	EventRateLimited
	EventDropped
)

// Manager owns the session table and the connection-to-session index.
// Every mutation and lookup runs under one RWMutex, so resolve-or-create
// plus slot assignment is atomic per session id: two racing joins on a
// fresh id can never register two sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byConn   map[string]*Session
	grace    time.Duration
}

func NewManager(grace time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]*Session),
		grace:    grace,
	}
}

// NormalizeSessionID uppercases the raw id and strips every
// non-alphanumeric rune. Normalized ids shorter than 3 characters are
// rejected.
func NormalizeSessionID(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) < 3 {
		return "", domain.ErrInvalidIdentifier
	}
	return id, nil
}

const maxNameLength = 20

type JoinResult struct {
	SessionID string
	Role      domain.Role
	Occupancy int
	Name      string
}

// Join resolves or creates the session for rawID and assigns the
// connection a role. A connection already holding a slot elsewhere is
// released from it first, so a connection occupies at most one session.
func (m *Manager) Join(conn domain.Connection, rawID, rawName string) (JoinResult, error) {
	name := strings.TrimSpace(rawName)
	if name == "" || strings.TrimSpace(rawID) == "" {
		return JoinResult{}, domain.ErrInvalidRequest
	}
	if runes := []rune(name); len(runes) > maxNameLength {
		name = string(runes[:maxNameLength])
	}

	id, err := NormalizeSessionID(rawID)
	if err != nil {
		return JoinResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.byConn[conn.ID()]; ok {
		m.removeLocked(prior, conn.ID())
	}

	s, ok := m.sessions[id]
	if !ok {
		s = newSession(id, time.Now())
		m.sessions[id] = s
		metrics.ActiveSessions.Inc()
		slog.Info("session created", "sessionId", id)
	}

	role, occupancy, err := s.join(conn, name)
	if err != nil {
		return JoinResult{}, err
	}
	m.byConn[conn.ID()] = s

	slog.Info("player joined", "sessionId", id, "clientId", conn.ID(), "role", role, "occupancy", occupancy)
	return JoinResult{SessionID: id, Role: role, Occupancy: occupancy, Name: name}, nil
}

type LeaveResult struct {
	SessionID string
	Role      domain.Role
	Name      string
	Occupancy int
}

// Leave releases the connection's slot, if any. When the session
// empties it is not deleted immediately: eviction is deferred by the
// grace period so a quick reconnect lands back in the same session.
func (m *Manager) Leave(conn domain.Connection) (LeaveResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[conn.ID()]
	if !ok {
		return LeaveResult{}, false
	}
	role, name, occupancy, _ := m.removeLocked(s, conn.ID())

	slog.Info("player left", "sessionId", s.id, "clientId", conn.ID(), "role", role, "occupancy", occupancy)
	return LeaveResult{SessionID: s.id, Role: role, Name: name, Occupancy: occupancy}, true
}

// removeLocked vacates the slot and schedules deferred eviction when
// the session empties. Caller holds m.mu.
func (m *Manager) removeLocked(s *Session, connID string) (domain.Role, string, int, bool) {
	delete(m.byConn, connID)
	role, name, occupancy, ok := s.leave(connID)
	if ok && occupancy == 0 {
		time.AfterFunc(m.grace, func() { m.evictIfEmpty(s.id) })
	}
	return role, name, occupancy, ok
}

// evictIfEmpty runs when a grace timer fires. Occupancy is checked at
// fire time, not schedule time: a session refilled during the grace
// window survives.
func (m *Manager) evictIfEmpty(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.occupancy() > 0 {
		return
	}
	delete(m.sessions, id)
	metrics.ActiveSessions.Dec()
	slog.Info("session evicted", "sessionId", id)
}

// SweepStale deletes empty sessions whose age exceeds threshold.
// Occupied sessions are never swept regardless of age.
func (m *Manager) SweepStale(now time.Time, threshold time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.occupancy() == 0 && now.Sub(s.createdAt) > threshold {
			delete(m.sessions, id)
			metrics.ActiveSessions.Dec()
			removed++
		}
	}
	if removed > 0 {
		slog.Info("stale sessions swept", "removed", removed)
	}
	return removed
}

// StartSweeper runs SweepStale on a fixed interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval, threshold time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.SweepStale(now, threshold)
			}
		}
	}()
}

// AllowEvent authorizes one inbound gameplay event: the connection must
// hold a slot, and the per-kind rate limit must have elapsed.
func (m *Manager) AllowEvent(connID, kind string, now time.Time, minInterval time.Duration) (domain.Role, EventStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return "", EventDropped
	}
	role, ok := s.roleOf(connID)
	if !ok {
		return "", EventDropped
	}
	if !s.allowEvent(connID, kind, now, minInterval) {
		return role, EventRateLimited
	}
	return role, EventAccepted
}

// BroadcastFrom sends data to every other occupant of the sender's
// session. Returns false when the sender has no session.
func (m *Manager) BroadcastFrom(connID string, data []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byConn[connID]
	if !ok {
		return false
	}
	s.broadcast(connID, data)
	return true
}

// BroadcastToSession sends data to every occupant of the named
// session. Used for notices addressed to a session after the sender's
// mapping is already gone, such as playerLeft.
func (m *Manager) BroadcastToSession(id string, data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return
	}
	for _, occ := range s.slots {
		_ = occ.conn.Send(data)
	}
}

// CompleteLevel marks the sender's session complete.
func (m *Manager) CompleteLevel(connID string) (domain.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return "", false
	}
	role, ok := s.roleOf(connID)
	if !ok {
		return "", false
	}
	s.completeLevel()
	return role, true
}

// RestartLevel returns the sender's session to play on the same level.
func (m *Manager) RestartLevel(connID string) (domain.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return "", false
	}
	role, ok := s.roleOf(connID)
	if !ok {
		return "", false
	}
	s.restartLevel()
	return role, true
}

// AdvanceLevel bumps the level counter and returns to play.
func (m *Manager) AdvanceLevel(connID string) (domain.Role, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byConn[connID]
	if !ok {
		return "", 0, false
	}
	role, ok := s.roleOf(connID)
	if !ok {
		return "", 0, false
	}
	return role, s.advanceLevel(), true
}

type SessionStats struct {
	ID        string       `json:"id"`
	Occupants int          `json:"occupants"`
	Level     int          `json:"level"`
	Phase     domain.Phase `json:"phase"`
	AgeMs     int64        `json:"ageMs"`
}

type Stats struct {
	TotalSessions  int            `json:"totalSessionCount"`
	TotalOccupants int            `json:"totalOccupants"`
	Sessions       []SessionStats `json:"sessions"`
}

// Stats returns a read-only aggregate view of the session table.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := Stats{
		TotalSessions: len(m.sessions),
		Sessions:      make([]SessionStats, 0, len(m.sessions)),
	}
	for id, s := range m.sessions {
		stats.TotalOccupants += s.occupancy()
		stats.Sessions = append(stats.Sessions, SessionStats{
			ID:        id,
			Occupants: s.occupancy(),
			Level:     s.level,
			Phase:     s.phase,
			AgeMs:     now.Sub(s.createdAt).Milliseconds(),
		})
	}
	return stats
}

// BroadcastAll sends data to every occupant of every session. Used for
// the shutdown notice.
func (m *Manager) BroadcastAll(data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		for _, occ := range s.slots {
			_ = occ.conn.Send(data)
		}
	}
}

// CloseAll closes every occupant connection.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		for _, occ := range s.slots {
			_ = occ.conn.Close()
		}
	}
}
