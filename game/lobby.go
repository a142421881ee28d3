package game

import (
	"context"
	"time"
)

// UniqueIdGenerator hands out room codes and reclaims them on teardown.
type UniqueIdGenerator interface {
	Generate() string
	Dispose(id string)
}

// PeriodicTickerChannelCreator abstracts ticker construction so tests can
// drive lobby time through plain channels.
type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

type lobbyJoinRequest struct {
	roomID string
	jreq   roomJoinRequest
}

type autoMatchRequest struct {
	mode     Mode
	jreq     roomJoinRequest
	forceNew bool // retry after a stale-description rejection
}

// lobby is the room directory: a second actor owning the room-id map.
// Rooms are fully independent of one another; this is the only state
// shared across them.
type lobby struct {
	rooms        map[string]*Room
	descriptions map[string]roomDescription

	addAndRunRoomChan chan *Room
	removeRoomChan    chan string
	roomDescUpdate    chan roomDescription
	joinRoomReqs      chan lobbyJoinRequest
	autoMatchReqs     chan autoMatchRequest

	idGenerator   UniqueIdGenerator
	tickerCreator PeriodicTickerChannelCreator
	prompts       PromptProvider
	tokens        TokenIssuer
}

func NewLobby(idgen UniqueIdGenerator, tickerCreator PeriodicTickerChannelCreator, prompts PromptProvider, tokens TokenIssuer) *lobby {
	return &lobby{
		rooms:             map[string]*Room{},
		descriptions:      map[string]roomDescription{},
		addAndRunRoomChan: make(chan *Room, 32),
		removeRoomChan:    make(chan string, 64),
		roomDescUpdate:    make(chan roomDescription, 256),
		joinRoomReqs:      make(chan lobbyJoinRequest, 256),
		autoMatchReqs:     make(chan autoMatchRequest, 256),
		idGenerator:       idgen,
		tickerCreator:     tickerCreator,
		prompts:           prompts,
		tokens:            tokens,
	}
}

func (l *lobby) RequestAddAndRunRoom(ctx context.Context, r *Room) {
	select {
	case l.addAndRunRoomChan <- r:
	case <-ctx.Done():
	}
}

func (l *lobby) ForwardPlayerJoinRequestToRoom(ctx context.Context, roomID string, jreq roomJoinRequest) {
	select {
	case l.joinRoomReqs <- lobbyJoinRequest{roomID: roomID, jreq: jreq}:
	case <-ctx.Done():
	}
}

func (l *lobby) RequestAutoMatch(ctx context.Context, mode Mode, jreq roomJoinRequest) {
	select {
	case l.autoMatchReqs <- autoMatchRequest{mode: mode, jreq: jreq}:
	case <-ctx.Done():
	}
}

// RemoveRoom is called by a room actor after it aborts. Must not block it.
func (l *lobby) RemoveRoom(roomID string) {
	select {
	case l.removeRoomChan <- roomID:
	default:
	}
}

func (l *lobby) RequestUpdateDescription(desc roomDescription) {
	select {
	case l.roomDescUpdate <- desc:
	default:
	}
}

// LobbyActor owns the directory. It also fans wall-clock ticks and
// keepalive pings out to every room, so each room sees time only through
// its serialized mailbox.
func (l *lobby) LobbyActor(started chan struct{}) {
	ticker := l.tickerCreator.Create(time.Second)
	pingTicker := l.tickerCreator.Create(time.Second * 30)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, r := range l.rooms {
				r.Tick(now)
			}
		case <-pingTicker:
			for _, r := range l.rooms {
				r.PingPlayers()
			}

		case room := <-l.addAndRunRoomChan:
			l.handleAddAndRunRoom(room)

		case roomID := <-l.removeRoomChan:
			l.handleRemoveRoom(roomID)

		case desc := <-l.roomDescUpdate:
			if _, exists := l.rooms[desc.id]; exists {
				l.descriptions[desc.id] = desc
			}

		case joinReq := <-l.joinRoomReqs:
			l.handleJoinReq(joinReq)

		case autoReq := <-l.autoMatchReqs:
			l.handleAutoMatch(autoReq)
		}
	}
}

func (l *lobby) handleAddAndRunRoom(r *Room) {
	id := l.idGenerator.Generate()
	r.SetId(id)
	r.SetParentLobby(l)

	l.rooms[id] = r
	l.descriptions[id] = r.Description()
	go r.GameLoop()
}

func (l *lobby) handleRemoveRoom(roomID string) {
	room, exists := l.rooms[roomID]
	if !exists {
		return
	}
	delete(l.rooms, roomID)
	delete(l.descriptions, roomID)
	room.CloseAndRelease()
	l.idGenerator.Dispose(roomID)
}

func (l *lobby) handleJoinReq(req lobbyJoinRequest) {
	room, exists := l.rooms[req.roomID]
	if !exists {
		req.jreq.respChan <- joinResult{code: WarnRoomNotFound}
		return
	}
	room.RequestJoin(req.jreq)
}

// handleAutoMatch implements findJoinable: the first auto room of the
// requested mode still in LOBBY with a free slot, else a fresh room.
// Descriptions are advisory; the room re-validates capacity on join, and a
// rejection comes back here as a forceNew retry instead of bouncing the
// player.
func (l *lobby) handleAutoMatch(req autoMatchRequest) {
	if !req.forceNew {
		for id, desc := range l.descriptions {
			if !desc.isAutoRoom || desc.mode != req.mode || desc.phase != PhaseLobby || desc.playersCount >= AUTO_ROOM_CAP {
				continue
			}
			if room := l.rooms[id]; room != nil {
				l.forwardAutoJoin(room, req)
				return
			}
		}
	}

	room := NewRoom(true, req.mode, l.prompts, l.tokens)
	l.handleAddAndRunRoom(room)
	room.RequestJoin(req.jreq)
}

// forwardAutoJoin relays the matched room's verdict through a proxy channel.
// A capacity rejection means the cached description was stale; the request
// re-enters the mailbox flagged to open a fresh room, which cannot reject.
func (l *lobby) forwardAutoJoin(room *Room, req autoMatchRequest) {
	proxy := make(chan joinResult, 1)
	jreq := req.jreq
	jreq.respChan = proxy
	room.RequestJoin(jreq)

	go func() {
		res := <-proxy
		if res.code == WarnRoomFull || res.code == WarnRoomClosed {
			retry := req
			retry.forceNew = true
			select {
			case l.autoMatchReqs <- retry:
				return
			default:
				// mailbox jammed; surface the rejection rather than stall
			}
		}
		req.jreq.respChan <- res
	}()
}
