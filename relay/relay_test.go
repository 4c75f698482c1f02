package relay

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Daultz/elemental-duo-multiplayer/config"
	"github.com/Daultz/elemental-duo-multiplayer/domain"
	"github.com/Daultz/elemental-duo-multiplayer/session"
)

type mockConn struct {
	id       string
	received [][]byte
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error { return nil }

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func testRelayConfig() config.RelayConfig {
	return config.RelayConfig{
		InputMinInterval:    50 * time.Millisecond,
		PositionMinInterval: 67 * time.Millisecond,
		WorldWidth:          1000,
		WorldHeight:         600,
		PlayerWidth:         28,
		MaxVelX:             12,
		MaxVelY:             20,
	}
}

func pairedEngine(t *testing.T) (*Engine, *mockConn, *mockConn) {
	t.Helper()
	m := session.NewManager(5 * time.Second)
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	_, err := m.Join(a, "room1", "Alice")
	require.NoError(t, err)
	_, err = m.Join(b, "room1", "Bob")
	require.NoError(t, err)
	return New(m, testRelayConfig()), a, b
}

func lastPosition(t *testing.T, conn *mockConn) domain.PositionEvent {
	t.Helper()
	received := conn.getReceived()
	require.NotEmpty(t, received)
	var event domain.PositionEvent
	require.NoError(t, json.Unmarshal(received[len(received)-1], &event))
	return event
}

func TestEngine_PositionClamping(t *testing.T) {
	tests := []struct {
		name               string
		x, y, velX, velY   float64
		wantX, wantY       float64
		wantVelX, wantVelY float64
	}{
		{
			name: "below lower bounds",
			x:    -50, y: -10, velX: -99, velY: -99,
			wantX: 0, wantY: 0, wantVelX: -12, wantVelY: -20,
		},
		{
			name: "above upper bounds",
			x:    9999, y: 9999, velX: 99, velY: 99,
			wantX: 972, wantY: 600, wantVelX: 12, wantVelY: 20,
		},
		{
			name: "in bounds passes through",
			x:    480, y: 120, velX: -3, velY: 8.5,
			wantX: 480, wantY: 120, wantVelX: -3, wantVelY: 8.5,
		},
		{
			name:  "zero values",
			wantX: 0, wantY: 0, wantVelX: 0, wantVelY: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, a, b := pairedEngine(t)

			out := engine.Position(a, tt.x, tt.y, tt.velX, tt.velY, time.Now())
			require.Equal(t, Accepted, out)

			event := lastPosition(t, b)
			assert.Equal(t, tt.wantX, event.X)
			assert.Equal(t, tt.wantY, event.Y)
			assert.Equal(t, tt.wantVelX, event.VelX)
			assert.Equal(t, tt.wantVelY, event.VelY)
			assert.Equal(t, domain.RoleFire, event.Role)
			assert.NotZero(t, event.Timestamp)
		})
	}
}

func TestEngine_PositionRateLimit(t *testing.T) {
	engine, a, b := pairedEngine(t)
	t0 := time.Now()

	assert.Equal(t, Accepted, engine.Position(a, 1, 1, 0, 0, t0))
	assert.Equal(t, RateLimited, engine.Position(a, 2, 2, 0, 0, t0.Add(30*time.Millisecond)))
	assert.Equal(t, RateLimited, engine.Position(a, 3, 3, 0, 0, t0.Add(66*time.Millisecond)))

	// a rejected event does not advance the limiter, so the boundary
	// is still measured from t0
	assert.Equal(t, Accepted, engine.Position(a, 4, 4, 0, 0, t0.Add(67*time.Millisecond)))

	assert.Len(t, b.getReceived(), 2)
}

func TestEngine_KindsLimitedIndependently(t *testing.T) {
	engine, a, b := pairedEngine(t)
	t0 := time.Now()

	assert.Equal(t, Accepted, engine.Position(a, 1, 1, 0, 0, t0))
	assert.Equal(t, Accepted, engine.Input(a, json.RawMessage(`{"left":true}`), t0))
	assert.Equal(t, RateLimited, engine.Input(a, json.RawMessage(`{"left":false}`), t0.Add(49*time.Millisecond)))
	assert.Equal(t, Accepted, engine.Input(a, json.RawMessage(`{"left":false}`), t0.Add(50*time.Millisecond)))

	assert.Len(t, b.getReceived(), 3)
}

func TestEngine_InputForwardedOpaque(t *testing.T) {
	engine, a, b := pairedEngine(t)

	keys := json.RawMessage(`{"left":true,"jump":false,"custom":[1,2,3]}`)
	require.Equal(t, Accepted, engine.Input(a, keys, time.Now()))

	received := b.getReceived()
	require.Len(t, received, 1)

	var event domain.InputEvent
	require.NoError(t, json.Unmarshal(received[0], &event))
	assert.Equal(t, domain.RoleFire, event.Role)
	assert.JSONEq(t, string(keys), string(event.Keys))
	assert.NotZero(t, event.Timestamp)
}

func TestEngine_NeverEchoesToSender(t *testing.T) {
	engine, a, b := pairedEngine(t)

	require.Equal(t, Accepted, engine.Position(b, 10, 10, 0, 0, time.Now()))

	assert.Empty(t, b.getReceived())
	received := a.getReceived()
	require.Len(t, received, 1)

	var event domain.PositionEvent
	require.NoError(t, json.Unmarshal(received[0], &event))
	assert.Equal(t, domain.RoleWater, event.Role)
}

func TestEngine_DroppedWithoutSession(t *testing.T) {
	m := session.NewManager(5 * time.Second)
	engine := New(m, testRelayConfig())
	stranger := &mockConn{id: "stranger"}

	assert.Equal(t, Dropped, engine.Position(stranger, 1, 1, 0, 0, time.Now()))
	assert.Equal(t, Dropped, engine.Input(stranger, json.RawMessage(`{}`), time.Now()))
}
