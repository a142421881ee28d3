package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"secretwolf/metrics"
)

// TokenIssuer signs the identity token handed to a player on first join.
type TokenIssuer interface {
	Generate(playerID, roomID string, now time.Time) (string, error)
}

// Lobby is the room's view of the directory that owns it.
type Lobby interface {
	RemoveRoom(roomID string)
	RequestUpdateDescription(desc roomDescription)
}

type roomDescription struct {
	id           string
	isAutoRoom   bool
	mode         Mode
	phase        Phase
	playersCount int
}

type roomJoinRequest struct {
	conn     PlayerConn
	name     string
	claimID  string // player id recovered from an identity token, "" for new joins
	respChan chan joinResult
}

type joinResult struct {
	room     *Room
	playerID string
	token    string
	code     WarnCode // zero value means admitted
}

// Room is one isolated game session. Every field below the mailbox
// channels is owned exclusively by the GameLoop goroutine; nothing else
// may touch it. That serialization is the whole concurrency model: phase
// deadlines, socket messages and lifecycle events all funnel through the
// same loop, one at a time.
type Room struct {
	id           string
	isAutoRoom   bool
	isCustomMode bool

	parentLobby Lobby
	prompts     PromptProvider
	tokens      TokenIssuer
	clock       func() time.Time

	// aggregate state (actor-owned)
	mode             Mode
	phase            Phase
	phaseSeq         uint64
	roundID          string
	endsAt           time.Time
	players          []*playerState
	hostID           string
	round            *round
	playerStamps     map[string]Mode
	customTopics     []string
	icons            *iconPool
	createdAt        time.Time
	lastActivityAt   time.Time
	rematchRequested bool
	emptySince       time.Time

	// mailbox
	inbox        chan clientMessage
	joinRequests chan roomJoinRequest
	removals     chan string
	ticks        chan time.Time
	pingPlayers  chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func NewRoom(isAutoRoom bool, mode Mode, prompts PromptProvider, tokens TokenIssuer) *Room {
	r := &Room{
		isAutoRoom:   isAutoRoom,
		isCustomMode: mode == ModeCustom,
		mode:         mode,
		phase:        PhaseLobby,
		phaseSeq:     1,
		roundID:      newRoundID(),
		prompts:      prompts,
		tokens:       tokens,
		clock:        time.Now,
		playerStamps: make(map[string]Mode),
		icons:        newIconPool(ICON_POOL_SIZE),
		inbox:        make(chan clientMessage, 256),
		joinRequests: make(chan roomJoinRequest, 8),
		removals:     make(chan string, 64),
		ticks:        make(chan time.Time, 4),
		pingPlayers:  make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
	r.createdAt = r.clock()
	r.lastActivityAt = r.createdAt
	// a room nobody ever joins reaps itself on the empty-room grace
	r.emptySince = r.createdAt
	return r
}

func (r *Room) SetId(id string)        { r.id = id }
func (r *Room) SetParentLobby(l Lobby) { r.parentLobby = l }
func (r *Room) Description() roomDescription {
	return roomDescription{id: r.id, isAutoRoom: r.isAutoRoom, mode: r.mode, phase: r.phase, playersCount: len(r.players)}
}

// --- mailbox API, safe from any goroutine ---

// Deliver pushes a decoded message into the mailbox. Returns false once
// the room is gone so pumps can stop.
func (r *Room) Deliver(msg clientMessage) bool {
	select {
	case r.inbox <- msg:
		return true
	case <-r.closed:
		return false
	}
}

func (r *Room) RequestJoin(jreq roomJoinRequest) {
	select {
	case r.joinRequests <- jreq:
	case <-r.closed:
		jreq.respChan <- joinResult{code: WarnRoomClosed}
	}
}

func (r *Room) RequestRemoval(playerID string) {
	select {
	case r.removals <- playerID:
	case <-r.closed:
	}
}

func (r *Room) Tick(now time.Time) {
	select {
	case r.ticks <- now:
	default:
	}
}

func (r *Room) PingPlayers() {
	select {
	case r.pingPlayers <- struct{}{}:
	default:
	}
}

// CloseAndRelease is the lobby-side teardown entry point. Idempotent; the
// loop drains remaining cleanup when it observes the closed channel.
func (r *Room) CloseAndRelease() {
	r.closeOnce.Do(func() { close(r.closed) })
}

// GameLoop is the actor. Exactly one goroutine runs it per room, and it is
// the only code allowed to mutate room state.
func (r *Room) GameLoop() {
	metrics.ActiveRooms.Inc()
	defer metrics.ActiveRooms.Dec()

	for {
		select {
		case <-r.closed:
			r.closeAllConnections("")
			return
		case msg := <-r.inbox:
			r.handleMessage(msg)
		case jreq := <-r.joinRequests:
			r.handleJoinRequest(jreq)
		case playerID := <-r.removals:
			r.handleDisconnect(playerID)
		case now := <-r.ticks:
			r.handleTick(now)
		case <-r.pingPlayers:
			for _, p := range r.players {
				if p.connected {
					p.conn.Ping()
				}
			}
		}
	}
}

// --- internal helpers shared by the handlers ---

func (r *Room) findPlayer(id string) *playerState {
	for _, p := range r.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.connected {
			n++
		}
	}
	return n
}

// transition is the single place a phase change happens: it bumps the
// sequence counter, replaces the deadline wholesale, and notifies clients.
func (r *Room) transition(phase Phase, deadline time.Duration, now time.Time) {
	r.phase = phase
	r.phaseSeq++
	if deadline > 0 {
		r.endsAt = now.Add(deadline)
	} else {
		r.endsAt = time.Time{}
	}
	log.Debug().Str("room", r.id).Str("phase", string(phase)).Uint64("seq", r.phaseSeq).Msg("phase transition")
	r.broadcastPhase()
	r.broadcastState()
	r.pushDescription()
}

func (r *Room) pushDescription() {
	if r.parentLobby != nil {
		r.parentLobby.RequestUpdateDescription(r.Description())
	}
}

// abort is the only involuntary teardown path: broadcast the reason, close
// every connection, and detach from the lobby.
func (r *Room) abort(reason AbortReason) {
	log.Info().Str("room", r.id).Str("reason", string(reason)).Msg("aborting room")
	metrics.RoomAborts.WithLabelValues(string(reason)).Inc()

	r.broadcast(makeAbort(reason))
	r.closeAllConnections(string(reason))
	if r.parentLobby != nil {
		r.parentLobby.RemoveRoom(r.id)
	}
	r.CloseAndRelease()
}

func (r *Room) closeAllConnections(reason string) {
	for _, p := range r.players {
		if p.conn != nil {
			p.conn.Close(reason)
		}
	}
}

func (r *Room) removePlayerSlot(p *playerState, now time.Time) {
	for i, other := range r.players {
		if other == p {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	r.icons.release(p.icon)
	delete(r.playerStamps, p.id)
	if r.round != nil {
		delete(r.round.endDiscussVotes, p.id)
		delete(r.round.revealAcks, p.id)
		// a pending secret or ballot must not outlive the slot: a departed
		// owner could never be voted for. Once the draw has happened the
		// secrets map is history and stays intact.
		if r.phase == PhaseInput {
			delete(r.round.secrets, p.id)
		}
		if r.phase == PhaseVote {
			delete(r.round.votes, p.id)
		}
	}
	if len(r.players) == 0 {
		r.emptySince = now
	}
}
