package session

import (
	"time"

	"github.com/Daultz/elemental-duo-multiplayer/domain"
)

type occupant struct {
	conn domain.Connection
	name string
}

// Session is one isolated two-player pairing. It owns its two role
// slots, the shared level/phase state, and per-connection rate-limit
// timestamps. Sessions are only ever touched through Manager methods,
// under the Manager's lock, so they carry no lock of their own.
type Session struct {
	id        string
	createdAt time.Time

	slots     map[domain.Role]*occupant
	lastEvent map[string]map[string]time.Time
	level     int
	phase     domain.Phase
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:        id,
		createdAt: now,
		slots:     make(map[domain.Role]*occupant, 2),
		lastEvent: make(map[string]map[string]time.Time, 2),
		level:     1,
		phase:     domain.PhaseWaiting,
	}
}

// join assigns the first free role, fire before water.
func (s *Session) join(conn domain.Connection, name string) (domain.Role, int, error) {
	var role domain.Role
	switch {
	case s.slots[domain.RoleFire] == nil:
		role = domain.RoleFire
	case s.slots[domain.RoleWater] == nil:
		role = domain.RoleWater
	default:
		return "", len(s.slots), domain.ErrSessionFull
	}

	s.slots[role] = &occupant{conn: conn, name: name}
	s.lastEvent[conn.ID()] = make(map[string]time.Time, 2)
	if len(s.slots) == 2 {
		s.phase = domain.PhasePlaying
	}
	return role, len(s.slots), nil
}

func (s *Session) leave(connID string) (domain.Role, string, int, bool) {
	for role, occ := range s.slots {
		if occ.conn.ID() != connID {
			continue
		}
		name := occ.name
		delete(s.slots, role)
		delete(s.lastEvent, connID)
		s.phase = domain.PhaseWaiting
		return role, name, len(s.slots), true
	}
	return "", "", len(s.slots), false
}

func (s *Session) roleOf(connID string) (domain.Role, bool) {
	for role, occ := range s.slots {
		if occ.conn.ID() == connID {
			return role, true
		}
	}
	return "", false
}

func (s *Session) occupancy() int { return len(s.slots) }

// allowEvent applies the per-connection per-kind rate limit. An event
// is accepted when at least minInterval has elapsed since the last
// accepted event of the same kind (a delta exactly equal to the
// interval is accepted). The timestamp is only advanced on acceptance.
func (s *Session) allowEvent(connID, kind string, now time.Time, minInterval time.Duration) bool {
	stamps, ok := s.lastEvent[connID]
	if !ok {
		return false
	}
	if last, seen := stamps[kind]; seen && now.Sub(last) < minInterval {
		return false
	}
	stamps[kind] = now
	return true
}

// broadcast sends data to every occupant except the sender.
// Delivery is fire-and-forget: a failed send to one peer never
// affects the others or the sender.
func (s *Session) broadcast(senderID string, data []byte) {
	for _, occ := range s.slots {
		if occ.conn.ID() == senderID {
			continue
		}
		_ = occ.conn.Send(data)
	}
}

func (s *Session) completeLevel() { s.phase = domain.PhaseComplete }
func (s *Session) restartLevel()  { s.phase = domain.PhasePlaying }

func (s *Session) advanceLevel() int {
	s.level++
	s.phase = domain.PhasePlaying
	return s.level
}
