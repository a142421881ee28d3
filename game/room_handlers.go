package game

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// handleMessage validates one inbound client message against the current
// phase and sender, then mutates. Either the whole effect applies or none
// of it does; rejected messages only ever produce a warning.
func (r *Room) handleMessage(msg clientMessage) {
	sender := r.findPlayer(msg.from)
	if sender == nil || !sender.connected {
		// the player slot is gone or mid-reconnect; stale delivery
		return
	}

	if msg.t != MsgPing {
		r.lastActivityAt = r.clock()
	}

	switch msg.t {
	case MsgPing:
		sender.conn.Send(makePong())
	case MsgStart, MsgStartGame:
		r.handleStartGame(sender)
	case MsgSelectMode:
		r.handleSelectMode(sender, msg.payload.(*selectModePayload).Mode)
	case MsgModeStamp:
		r.handleModeStamp(sender, msg.payload.(*modeStampPayload).Mode)
	case MsgAddCustomTopic:
		r.handleAddCustomTopic(sender, msg.payload.(*topicPayload).Text)
	case MsgRemoveCustomTopic:
		r.handleRemoveCustomTopic(sender, msg.payload.(*removeTopicPayload).Index)
	case MsgStartCustomGame:
		r.handleStartCustomGame(sender)
	case MsgSubmitSecret:
		r.handleSubmitSecret(sender, msg.payload.(*secretPayload).Text)
	case MsgRevealReady:
		r.handleRevealReady(sender)
	case MsgChat:
		r.handleChat(sender, msg.payload.(*chatPayload).Text)
	case MsgEndDiscuss:
		r.handleEndDiscuss(sender)
	case MsgVote:
		r.handleVote(sender, msg.payload.(*votePayload).Target)
	case MsgPhaseChange:
		r.handlePhaseChange(sender, msg.payload.(*phaseChangePayload))
	case MsgRematch:
		r.handleRematch(sender)
	case MsgEndGame:
		r.handleEndGame(sender)
	case MsgExitGame, MsgLeave:
		r.handleLeave(sender)
	case MsgDisband:
		r.handleDisband(sender)
	default:
		sender.conn.Send(makeWarn(WarnInvalidOperation))
	}
}

func (r *Room) requireHost(sender *playerState) bool {
	if sender.id != r.hostID {
		sender.conn.Send(makeWarn(WarnNotHost))
		return false
	}
	return true
}

func (r *Room) requirePhase(sender *playerState, phase Phase) bool {
	if r.phase != phase {
		sender.conn.Send(makeWarn(WarnNotInPhase))
		return false
	}
	return true
}

// --- joins, reconnects, disconnects, leaves ---

func (r *Room) handleJoinRequest(jreq roomJoinRequest) {
	now := r.clock()
	r.lastActivityAt = now
	r.emptySince = time.Time{}

	// reconnect: an identity token matching a disconnected lobby slot
	// re-attaches instead of allocating a fresh player
	if jreq.claimID != "" && r.phase == PhaseLobby {
		if p := r.findPlayer(jreq.claimID); p != nil && !p.connected && !p.left {
			// someone may have taken the freed capacity in the meantime
			if !r.isAutoRoom && !r.isCustomMode && r.connectedCount() >= FRIEND_ROOM_CAP {
				jreq.respChan <- joinResult{code: WarnRoomFull}
				return
			}
			p.connected = true
			p.disconnectedAt = time.Time{}
			p.conn = jreq.conn
			jreq.respChan <- joinResult{room: r, playerID: p.id, token: p.token}
			p.conn.Send(encodeServerMessage(MsgYou, youPayload{PlayerID: p.id, Token: p.token}))
			r.broadcastState()
			r.pushDescription()
			log.Debug().Str("room", r.id).Str("player", p.id).Msg("player reconnected")
			if r.isAutoRoom && r.connectedCount() >= AUTO_ROOM_CAP {
				r.startReady(now)
			}
			return
		}
	}

	if code := r.admissionCheck(); code != "" {
		jreq.respChan <- joinResult{code: code}
		return
	}

	base := truncateGraphemes(strings.TrimSpace(jreq.name), NICKNAME_GRAPHEME)
	if base == "" {
		jreq.respChan <- joinResult{code: WarnNicknameRequired}
		return
	}

	p := &playerState{
		id:        newPlayerID(),
		name:      dedupeNickname(base, r.players),
		icon:      r.icons.allocate(),
		connected: true,
		conn:      jreq.conn,
	}
	token, err := r.tokens.Generate(p.id, r.id, now)
	if err != nil {
		log.Error().Err(err).Str("room", r.id).Msg("failed to issue identity token")
	}
	p.token = token

	r.players = append(r.players, p)
	if r.hostID == "" && r.phase == PhaseLobby {
		r.hostID = p.id
	}

	jreq.respChan <- joinResult{room: r, playerID: p.id, token: p.token}
	p.conn.Send(encodeServerMessage(MsgYou, youPayload{PlayerID: p.id, Token: p.token}))
	r.broadcastState()
	r.pushDescription()
	log.Debug().Str("room", r.id).Str("player", p.id).Str("name", p.name).Msg("player joined")

	if r.isAutoRoom && r.phase == PhaseLobby && r.connectedCount() >= AUTO_ROOM_CAP {
		r.startReady(now)
	}
}

// admissionCheck applies the phase and capacity join policy.
func (r *Room) admissionCheck() WarnCode {
	switch r.phase {
	case PhaseLobby:
	case PhaseReady:
		// a previously counted slot may still admit a late arrival
		if !r.isAutoRoom || len(r.players) >= AUTO_ROOM_CAP {
			return WarnRoomClosed
		}
		return ""
	default:
		return WarnRoomClosed
	}

	if r.isAutoRoom {
		// auto rooms count seats, not connections: the round starts the
		// moment the seats fill, so a grace slot still holds its seat
		if len(r.players) >= AUTO_ROOM_CAP {
			return WarnRoomFull
		}
		return ""
	}
	// friend rooms cap connected players; a slot in the disconnect grace
	// window does not block a newcomer
	if !r.isCustomMode && r.connectedCount() >= FRIEND_ROOM_CAP {
		return WarnRoomFull
	}
	return ""
}

// handleDisconnect reacts to a transport drop. Lobby slots survive a grace
// window for reconnection; once a round is underway there is no safe
// partial state to resume into, so the room aborts.
func (r *Room) handleDisconnect(playerID string) {
	p := r.findPlayer(playerID)
	if p == nil || !p.connected {
		return
	}
	now := r.clock()

	p.connected = false
	p.disconnectedAt = now
	if p.conn != nil {
		p.conn.Close("")
		p.conn = nil
	}
	log.Debug().Str("room", r.id).Str("player", playerID).Str("phase", string(r.phase)).Msg("player disconnected")

	switch r.phase {
	case PhaseLobby:
		r.broadcastState()
		r.pushDescription()
	case PhaseReady:
		if r.connectedCount() < MIN_PLAYERS {
			r.abort(AbortBelowMinimum)
			return
		}
		r.broadcastState()
		r.pushDescription()
	default:
		if p.id == r.hostID {
			r.abort(AbortHostDisconnected)
		} else {
			r.abort(AbortPlayerDisconnected)
		}
	}
}

// handleLeave is a voluntary exit: the slot is removed immediately and the
// icon released.
func (r *Room) handleLeave(sender *playerState) {
	now := r.clock()
	sender.left = true
	sender.connected = false
	if sender.conn != nil {
		sender.conn.Close("")
		sender.conn = nil
	}
	r.removePlayerSlot(sender, now)
	log.Debug().Str("room", r.id).Str("player", sender.id).Msg("player left")

	wasHost := sender.id == r.hostID
	if wasHost {
		if r.isAutoRoom {
			r.hostID = ""
		} else {
			r.abort(AbortHostLeft)
			return
		}
	}

	switch r.phase {
	case PhaseLobby:
	case PhaseReady:
		if r.connectedCount() < MIN_PLAYERS {
			r.abort(AbortBelowMinimum)
			return
		}
	default:
		if r.connectedCount() < MIN_PLAYERS {
			r.abort(AbortInsufficientPlayers)
			return
		}
		// the departed player may have been the last holdout
		r.maybeCompleteOnAction(now)
	}

	r.broadcastState()
	r.pushDescription()
}

// --- lobby & pre-round operations ---

func (r *Room) handleStartGame(sender *playerState) {
	if !r.requirePhase(sender, PhaseLobby) || !r.requireHost(sender) {
		return
	}
	if r.isAutoRoom {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	if r.connectedCount() < MIN_PLAYERS {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	now := r.clock()
	if r.isCustomMode {
		r.startTopicCreation(now)
	} else {
		r.startModeSelect(now)
	}
}

func (r *Room) handleSelectMode(sender *playerState, mode Mode) {
	if !r.requirePhase(sender, PhaseModeSelect) || !r.requireHost(sender) {
		return
	}
	if !validSelectableMode(mode) {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	r.mode = mode
	r.startInput(r.clock())
}

func (r *Room) handleModeStamp(sender *playerState, mode Mode) {
	if !r.requirePhase(sender, PhaseModeSelect) {
		return
	}
	if !validSelectableMode(mode) {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	r.playerStamps[sender.id] = mode
	r.broadcast(encodeServerMessage(MsgModeStamp, stampTallyPayload{Stamps: r.modeStampTally()}))
	r.broadcastState()
}

func (r *Room) modeStampTally() map[Mode]int {
	tally := make(map[Mode]int)
	for _, m := range r.playerStamps {
		tally[m]++
	}
	return tally
}

func (r *Room) handleAddCustomTopic(sender *playerState, text string) {
	if !r.requirePhase(sender, PhaseTopicCreation) {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > MAX_TOPIC_RUNES || len(r.customTopics) >= MAX_CUSTOM_TOPICS {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	r.customTopics = append(r.customTopics, text)
	r.broadcast(encodeServerMessage(MsgCustomTopics, topicsPayload{Topics: r.customTopics}))
	r.broadcastState()
}

func (r *Room) handleRemoveCustomTopic(sender *playerState, index int) {
	if !r.requirePhase(sender, PhaseTopicCreation) {
		return
	}
	if index < 0 || index >= len(r.customTopics) {
		sender.conn.Send(makeWarn(WarnTargetNotFound))
		return
	}
	r.customTopics = append(r.customTopics[:index], r.customTopics[index+1:]...)
	r.broadcast(encodeServerMessage(MsgCustomTopics, topicsPayload{Topics: r.customTopics}))
	r.broadcastState()
}

func (r *Room) handleStartCustomGame(sender *playerState) {
	if !r.requirePhase(sender, PhaseTopicCreation) || !r.requireHost(sender) {
		return
	}
	if len(r.customTopics) == 0 {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	r.startInput(r.clock())
}

// --- in-round operations ---

func (r *Room) handleSubmitSecret(sender *playerState, text string) {
	if !r.requirePhase(sender, PhaseInput) {
		return
	}
	if _, dup := r.round.secrets[sender.id]; dup {
		sender.conn.Send(makeWarn(WarnAlreadySubmitted))
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	if runes := []rune(text); len(runes) > MAX_SECRET_RUNES {
		text = string(runes[:MAX_SECRET_RUNES])
	}
	r.round.secrets[sender.id] = text
	r.broadcastState()

	if r.allConnectedSubmitted() {
		r.completeInput(r.clock())
	}
}

func (r *Room) allConnectedSubmitted() bool {
	for _, p := range r.players {
		if !p.connected {
			continue
		}
		if _, ok := r.round.secrets[p.id]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) handleRevealReady(sender *playerState) {
	if !r.requirePhase(sender, PhaseReveal) {
		return
	}
	// recorded only; the reveal animation is timer-gated, never player-gated
	r.round.revealAcks[sender.id] = struct{}{}
}

func (r *Room) handleChat(sender *playerState, text string) {
	if r.phase != PhaseDiscuss {
		sender.conn.Send(makeWarn(WarnChatDisabled))
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if runes := []rune(text); len(runes) > MAX_CHAT_RUNES {
		text = string(runes[:MAX_CHAT_RUNES])
	}
	entry := chatEntry{From: sender.id, Name: sender.name, Text: text}
	r.round.chat = append(r.round.chat, entry)
	r.broadcast(encodeServerMessage(MsgChat, chatEventPayload(entry)))
	r.broadcastState()
}

func (r *Room) handleEndDiscuss(sender *playerState) {
	if !r.requirePhase(sender, PhaseDiscuss) {
		return
	}
	if _, dup := r.round.endDiscussVotes[sender.id]; dup {
		sender.conn.Send(makeWarn(WarnAlreadySubmitted))
		return
	}
	r.round.endDiscussVotes[sender.id] = struct{}{}
	r.broadcastState()

	if len(r.round.endDiscussVotes)*2 > r.connectedCount() {
		r.completeDiscuss(r.clock())
	}
}

func (r *Room) handleVote(sender *playerState, target string) {
	if !r.requirePhase(sender, PhaseVote) {
		return
	}
	if _, dup := r.round.votes[sender.id]; dup {
		sender.conn.Send(makeWarn(WarnAlreadySubmitted))
		return
	}
	if target == sender.id {
		sender.conn.Send(makeWarn(WarnSelfVote))
		return
	}
	if target != VoteNone && r.findPlayer(target) == nil {
		sender.conn.Send(makeWarn(WarnTargetNotFound))
		return
	}
	r.round.votes[sender.id] = target
	r.broadcastState()

	if r.allConnectedVoted() {
		r.completeVote(r.clock())
	}
}

func (r *Room) allConnectedVoted() bool {
	for _, p := range r.players {
		if !p.connected {
			continue
		}
		if _, ok := r.round.votes[p.id]; !ok {
			return false
		}
	}
	return true
}

// handlePhaseChange moves JUDGE to RESULT after the client-side result
// delay. Stale notices from an earlier phase are dropped.
func (r *Room) handlePhaseChange(sender *playerState, p *phaseChangePayload) {
	if r.phase != PhaseJudge {
		sender.conn.Send(makeWarn(WarnNotInPhase))
		return
	}
	if p.RoundID != r.roundID || p.PhaseSeq != r.phaseSeq {
		log.Debug().Str("room", r.id).Uint64("got", p.PhaseSeq).Uint64("want", r.phaseSeq).Msg("stale phaseChange dropped")
		return
	}
	r.startResult(r.clock())
}

// --- result & lifecycle operations ---

func (r *Room) handleRematch(sender *playerState) {
	if !r.requirePhase(sender, PhaseResult) || !r.requireHost(sender) {
		return
	}
	if r.isAutoRoom || r.rematchRequested {
		sender.conn.Send(makeWarn(WarnInvalidOperation))
		return
	}
	r.rematchRequested = true
	r.endsAt = r.clock().Add(REMATCH_DELAY)
	r.broadcast(encodeServerMessage(MsgRematch, nil))
	r.broadcastState()
}

func (r *Room) handleEndGame(sender *playerState) {
	if !r.requirePhase(sender, PhaseResult) || !r.requireHost(sender) {
		return
	}
	r.broadcast(encodeServerMessage(MsgEndGame, nil))
	r.abort(AbortExplicitEnd)
}

func (r *Room) handleDisband(sender *playerState) {
	if !r.requireHost(sender) {
		return
	}
	r.broadcast(encodeServerMessage(MsgDisband, nil))
	r.abort(AbortDisbanded)
}

// maybeCompleteOnAction re-checks the current phase's completion condition
// after the participant set shrank.
func (r *Room) maybeCompleteOnAction(now time.Time) {
	switch r.phase {
	case PhaseInput:
		if r.allConnectedSubmitted() {
			r.completeInput(now)
		}
	case PhaseDiscuss:
		if len(r.round.endDiscussVotes)*2 > r.connectedCount() {
			r.completeDiscuss(now)
		}
	case PhaseVote:
		if r.allConnectedVoted() {
			r.completeVote(now)
		}
	}
}
