package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockNetworkSession) Close(reason string) {
	m.Called(reason)
}

// --- UniqueIdGenerator ---

type MockUniqueIdGenerator struct {
	mock.Mock
}

func (m *MockUniqueIdGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockUniqueIdGenerator) Dispose(id string) {
	m.Called(id)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- recording fakes for room tests ---

// fakeConn records every frame the room pushes to one player, decoded back
// into envelopes so tests can assert on types and payloads. Safe for use
// with a running GameLoop.
type fakeConn struct {
	mu          sync.Mutex
	frames      []envelope
	pings       int
	closed      bool
	closeReason string
}

func (c *fakeConn) Send(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		panic("fakeConn received non-envelope frame: " + string(data))
	}
	c.mu.Lock()
	c.frames = append(c.frames, env)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	c.pings++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	c.closed = true
	c.closeReason = reason
	c.mu.Unlock()
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) lastOfType(t string) *envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].T == t {
			return &c.frames[i]
		}
	}
	return nil
}

func (c *fakeConn) countOfType(t string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.T == t {
			n++
		}
	}
	return n
}

func (c *fakeConn) lastWarn() WarnCode {
	env := c.lastOfType(MsgWarn)
	if env == nil {
		return ""
	}
	var p warnPayload
	if err := json.Unmarshal(env.P, &p); err != nil {
		return ""
	}
	return p.Code
}

func (c *fakeConn) lastAbort() AbortReason {
	env := c.lastOfType(MsgAbort)
	if env == nil {
		return ""
	}
	var p abortPayload
	if err := json.Unmarshal(env.P, &p); err != nil {
		panic("fakeConn received undecodable abort payload: " + err.Error())
	}
	return p.Reason
}

func (c *fakeConn) lastState() *RoomSnapshot {
	env := c.lastOfType(MsgState)
	if env == nil {
		return nil
	}
	var s RoomSnapshot
	if err := json.Unmarshal(env.P, &s); err != nil {
		return nil
	}
	return &s
}

// recordingLobby captures directory-side effects of a room under test.
type recordingLobby struct {
	mu      sync.Mutex
	removed []string
	descs   []roomDescription
}

func (l *recordingLobby) RemoveRoom(roomID string) {
	l.mu.Lock()
	l.removed = append(l.removed, roomID)
	l.mu.Unlock()
}

func (l *recordingLobby) RequestUpdateDescription(desc roomDescription) {
	l.mu.Lock()
	l.descs = append(l.descs, desc)
	l.mu.Unlock()
}

func (l *recordingLobby) removedRooms() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.removed))
	copy(out, l.removed)
	return out
}

func (l *recordingLobby) lastDescription() *roomDescription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.descs) == 0 {
		return nil
	}
	d := l.descs[len(l.descs)-1]
	return &d
}

// stubPrompts returns a fixed list so round prompts are deterministic.
type stubPrompts struct{}

func (stubPrompts) PromptsForMode(mode Mode) []string {
	return []string{"stub prompt for " + string(mode)}
}

// stubTokens issues predictable identity tokens.
type stubTokens struct{}

func (stubTokens) Generate(playerID, roomID string, now time.Time) (string, error) {
	return "token-" + playerID, nil
}
