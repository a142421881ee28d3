package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLobbyUnderTest(t *testing.T) (*lobby, *MockUniqueIdGenerator, *MockPeriodicTickerChannelCreator) {
	t.Helper()
	idgen := &MockUniqueIdGenerator{}
	tickers := &MockPeriodicTickerChannelCreator{}
	return NewLobby(idgen, tickers, stubPrompts{}, stubTokens{}), idgen, tickers
}

func joinThroughLobby(t *testing.T, l *lobby, roomID, name string) (joinResult, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	resp := make(chan joinResult, 1)
	l.handleJoinReq(lobbyJoinRequest{roomID: roomID, jreq: roomJoinRequest{conn: conn, name: name, respChan: resp}})
	select {
	case res := <-resp:
		return res, conn
	case <-time.After(2 * time.Second):
		t.Fatal("join through lobby never answered")
		return joinResult{}, nil
	}
}

func TestLobbyAddAndRemoveRoom(t *testing.T) {
	l, idgen, _ := newLobbyUnderTest(t)
	idgen.On("Generate").Return("ROOMAA").Once()
	idgen.On("Dispose", "ROOMAA").Once()

	room := NewRoom(false, ModeClassic, stubPrompts{}, stubTokens{})
	l.handleAddAndRunRoom(room)

	assert.Equal(t, "ROOMAA", room.id)
	assert.Same(t, room, l.rooms["ROOMAA"])
	desc, ok := l.descriptions["ROOMAA"]
	require.True(t, ok)
	assert.Equal(t, PhaseLobby, desc.phase)
	assert.Equal(t, 0, desc.playersCount)

	l.handleRemoveRoom("ROOMAA")
	assert.Empty(t, l.rooms)
	assert.Empty(t, l.descriptions)
	select {
	case <-room.closed:
	case <-time.After(time.Second):
		t.Fatal("removed room was not closed")
	}
	idgen.AssertExpectations(t)

	// removal of an unknown id is a no-op
	l.handleRemoveRoom("ROOMAA")
}

func TestLobbyJoinUnknownRoom(t *testing.T) {
	l, _, _ := newLobbyUnderTest(t)
	res, _ := joinThroughLobby(t, l, "NOSUCH", "taro")
	assert.Equal(t, WarnRoomNotFound, res.code)
}

func TestLobbyForwardsJoinToRoom(t *testing.T) {
	l, idgen, _ := newLobbyUnderTest(t)
	idgen.On("Generate").Return("ROOMAB").Once()
	idgen.On("Dispose", "ROOMAB").Maybe()

	l.handleAddAndRunRoom(NewRoom(false, ModeClassic, stubPrompts{}, stubTokens{}))
	defer l.handleRemoveRoom("ROOMAB")

	res, conn := joinThroughLobby(t, l, "ROOMAB", "taro")
	require.Empty(t, res.code)
	assert.NotEmpty(t, res.playerID)
	assert.Equal(t, "token-"+res.playerID, res.token)

	waitFor(t, func() bool {
		s := conn.lastState()
		return s != nil && s.Phase == PhaseLobby && len(s.Players) == 1
	}, "join was never broadcast")
}

func TestLobbyAutoMatch(t *testing.T) {
	l, idgen, _ := newLobbyUnderTest(t)
	idgen.On("Generate").Return("AUTO01").Once()
	idgen.On("Generate").Return("AUTO02").Once()
	idgen.On("Dispose", mock.Anything).Maybe()
	defer func() {
		l.handleRemoveRoom("AUTO01")
		l.handleRemoveRoom("AUTO02")
	}()

	autoJoin := func(mode Mode, name string) (joinResult, *fakeConn) {
		conn := &fakeConn{}
		resp := make(chan joinResult, 1)
		l.handleAutoMatch(autoMatchRequest{mode: mode, jreq: roomJoinRequest{conn: conn, name: name, respChan: resp}})
		select {
		case res := <-resp:
			return res, conn
		case <-time.After(2 * time.Second):
			t.Fatal("auto match never answered")
			return joinResult{}, nil
		}
	}

	// first request opens a room, the second lands in the same one
	first, _ := autoJoin(ModeClassic, "taro")
	require.Empty(t, first.code)
	second, _ := autoJoin(ModeClassic, "hanako")
	require.Empty(t, second.code)
	assert.Same(t, first.room, second.room)
	assert.Len(t, l.rooms, 1)

	// a different mode never shares the room
	other, _ := autoJoin(ModeLove, "jiro")
	require.Empty(t, other.code)
	assert.NotSame(t, first.room, other.room)
	assert.Len(t, l.rooms, 2)

	idgen.AssertNumberOfCalls(t, "Generate", 2)
}

// TestAutoMatchFallsBackWhenDescriptionStale fills a room behind the
// directory's back, so the cached description still advertises a free slot.
// The rejected join must come back as a forceNew retry and land in a fresh
// room instead of bouncing the player.
func TestAutoMatchFallsBackWhenDescriptionStale(t *testing.T) {
	l, idgen, _ := newLobbyUnderTest(t)
	idgen.On("Generate").Return("AUTO03").Once()
	idgen.On("Generate").Return("AUTO04").Once()
	idgen.On("Dispose", mock.Anything).Maybe()
	defer func() {
		l.handleRemoveRoom("AUTO03")
		l.handleRemoveRoom("AUTO04")
	}()

	first := NewRoom(true, ModeClassic, stubPrompts{}, stubTokens{})
	l.handleAddAndRunRoom(first)

	for _, name := range []string{"taro", "hanako", "jiro"} {
		resp := make(chan joinResult, 1)
		first.RequestJoin(roomJoinRequest{conn: &fakeConn{}, name: name, respChan: resp})
		select {
		case res := <-resp:
			require.Empty(t, res.code)
		case <-time.After(2 * time.Second):
			t.Fatal("seeding join never answered")
		}
	}

	resp := make(chan joinResult, 1)
	l.handleAutoMatch(autoMatchRequest{mode: ModeClassic,
		jreq: roomJoinRequest{conn: &fakeConn{}, name: "shiro", respChan: resp}})

	var retry autoMatchRequest
	select {
	case retry = <-l.autoMatchReqs:
	case <-time.After(2 * time.Second):
		t.Fatal("rejection never produced a retry")
	}
	require.True(t, retry.forceNew)

	l.handleAutoMatch(retry)
	select {
	case res := <-resp:
		require.Empty(t, res.code)
		assert.NotSame(t, first, res.room)
		assert.Equal(t, "AUTO04", res.room.id)
	case <-time.After(2 * time.Second):
		t.Fatal("fallback room never admitted the player")
	}
}

// TestLobbyActorEndToEnd runs the real actor with hand-driven tickers: add a
// room, join it, observe the ping fan-out, then disband and watch the lobby
// reclaim the id.
func TestLobbyActorEndToEnd(t *testing.T) {
	l, idgen, tickers := newLobbyUnderTest(t)

	tick := make(chan time.Time)
	ping := make(chan time.Time)
	tickers.On("Create", time.Second).Return(tick).Once()
	tickers.On("Create", 30*time.Second).Return(ping).Once()

	idgen.On("Generate").Return("LIVEAA").Once()
	disposed := make(chan struct{})
	idgen.On("Dispose", "LIVEAA").Run(func(mock.Arguments) { close(disposed) }).Once()

	started := make(chan struct{})
	go l.LobbyActor(started)
	<-started

	ctx := context.Background()
	l.RequestAddAndRunRoom(ctx, NewRoom(false, ModeClassic, stubPrompts{}, stubTokens{}))

	// registration and joins travel on different channels, so the first
	// join may race the add; retry until the room answers
	var res joinResult
	var conn *fakeConn
	waitFor(t, func() bool {
		conn = &fakeConn{}
		resp := make(chan joinResult, 1)
		l.ForwardPlayerJoinRequestToRoom(ctx, "LIVEAA", roomJoinRequest{conn: conn, name: "taro", respChan: resp})
		res = <-resp
		return res.code == ""
	}, "join was never admitted")

	// keepalive pings reach the room's connections through the fan-out
	ping <- time.Now()
	waitFor(t, func() bool { return conn.pingCount() > 0 }, "ping never fanned out")

	// the host disbands; the room detaches and the lobby reclaims the id
	require.True(t, res.room.Deliver(clientMessage{t: MsgDisband, from: res.playerID}))
	select {
	case <-disposed:
	case <-time.After(2 * time.Second):
		t.Fatal("room id was never reclaimed")
	}
	waitFor(t, func() bool { return conn.isClosed() }, "connection never closed")
	assert.Equal(t, AbortDisbanded, conn.lastAbort())
}

// TestLobbyTickReapsAbandonedRoom drives wall-clock ticks through the fan-out
// and checks that a room nobody joined tears itself down.
func TestLobbyTickReapsAbandonedRoom(t *testing.T) {
	l, idgen, tickers := newLobbyUnderTest(t)

	tick := make(chan time.Time)
	ping := make(chan time.Time)
	tickers.On("Create", time.Second).Return(tick).Once()
	tickers.On("Create", 30*time.Second).Return(ping).Once()

	idgen.On("Generate").Return("LIVEAB").Once()
	disposed := make(chan struct{})
	idgen.On("Dispose", "LIVEAB").Run(func(mock.Arguments) { close(disposed) }).Once()

	started := make(chan struct{})
	go l.LobbyActor(started)
	<-started

	l.RequestAddAndRunRoom(context.Background(), NewRoom(false, ModeClassic, stubPrompts{}, stubTokens{}))

	// an early tick may land before the room registers, so keep ticking
	// until the reap is observed
	deadline := time.After(2 * time.Second)
	for {
		select {
		case tick <- time.Now().Add(EMPTY_ROOM_GRACE + time.Second):
		case <-disposed:
			return
		case <-deadline:
			t.Fatal("abandoned room was never reaped")
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
