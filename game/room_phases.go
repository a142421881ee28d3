package game

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Phase entry points. Each one fully replaces the deadline for the new
// phase; the stale deadline of the previous phase can never fire because
// handleTick re-checks the current phase before acting.

func (r *Room) startModeSelect(now time.Time) {
	r.roundID = newRoundID()
	r.round = nil
	r.playerStamps = make(map[string]Mode)
	r.rematchRequested = false
	r.transition(PhaseModeSelect, MODE_SELECT_DURATION, now)
}

func (r *Room) startTopicCreation(now time.Time) {
	r.roundID = newRoundID()
	r.round = nil
	r.rematchRequested = false
	r.transition(PhaseTopicCreation, 0, now)
}

func (r *Room) startReady(now time.Time) {
	r.roundID = newRoundID()
	r.round = nil
	r.transition(PhaseReady, READY_COUNTDOWN, now)
}

func (r *Room) startInput(now time.Time) {
	var prompt string
	if r.isCustomMode {
		prompt = r.customTopics[rand.Intn(len(r.customTopics))]
	} else {
		prompt = pickPrompt(r.prompts.PromptsForMode(r.mode))
	}
	r.round = newRound(prompt)
	r.transition(PhaseInput, INPUT_DURATION, now)
}

// completeInput converges the two input-phase triggers (everyone submitted
// vs. deadline) into one transition. Missing secrets are defaulted so the
// reveal draw always sees a complete map.
func (r *Room) completeInput(now time.Time) {
	if r.phase != PhaseInput {
		return
	}
	for _, p := range r.players {
		if !p.connected {
			continue
		}
		if _, ok := r.round.secrets[p.id]; !ok {
			r.round.secrets[p.id] = DEFAULT_SECRET
		}
	}

	owners := make([]string, 0, len(r.round.secrets))
	for id := range r.round.secrets {
		owners = append(owners, id)
	}
	owner := owners[rand.Intn(len(owners))]
	r.round.revealedOwner = owner
	r.round.revealedText = r.round.secrets[owner]

	r.transition(PhaseReveal, REVEAL_DURATION, now)
}

func (r *Room) startDiscuss(now time.Time) {
	if r.phase != PhaseReveal {
		return
	}
	duration := time.Duration(r.connectedCount()) * DISCUSS_PER_PLAYER
	r.transition(PhaseDiscuss, duration, now)
}

func (r *Room) completeDiscuss(now time.Time) {
	if r.phase != PhaseDiscuss {
		return
	}
	r.transition(PhaseVote, VOTE_DURATION, now)
}

// completeVote defaults missing ballots to the no-vote sentinel, computes
// the tally, and enters JUDGE. JUDGE has no deadline: the client drives
// the move to RESULT after its fixed reveal delay.
func (r *Room) completeVote(now time.Time) {
	if r.phase != PhaseVote {
		return
	}
	for _, p := range r.players {
		if !p.connected {
			continue
		}
		if _, ok := r.round.votes[p.id]; !ok {
			r.round.votes[p.id] = VoteNone
		}
	}
	r.round.tally = computeTally(r.round.votes, r.round.revealedOwner)
	r.transition(PhaseJudge, 0, now)
}

func (r *Room) startResult(now time.Time) {
	if r.isAutoRoom {
		r.transition(PhaseResult, RESULT_AUTO_END, now)
	} else {
		r.transition(PhaseResult, 0, now)
	}
}

// completeModeSelect fires when the selection window elapses without the
// host confirming: the most-stamped mode wins, ties and silence fall back
// to classic.
func (r *Room) completeModeSelect(now time.Time) {
	if r.phase != PhaseModeSelect {
		return
	}
	tally := r.modeStampTally()
	best := ModeClassic
	bestCount := 0
	for _, m := range []Mode{ModeClassic, ModeLove, ModeWork} {
		if tally[m] > bestCount {
			best = m
			bestCount = tally[m]
		}
	}
	r.mode = best
	r.startInput(now)
}

// handleTick runs every deadline in the room: the phase deadline, the
// lobby disconnect grace window, the empty-room grace, and the idle and
// absolute lifetime limits. A tick that arrives after the phase moved on
// finds nothing to do.
func (r *Room) handleTick(now time.Time) {
	if now.Sub(r.createdAt) > MATCH_DURATION_LIMIT {
		r.abort(AbortMatchTimeout)
		return
	}
	if now.Sub(r.lastActivityAt) > IDLE_TIMEOUT {
		r.abort(AbortIdleTimeout)
		return
	}

	if r.reapLobbySlots(now) {
		return
	}

	if !r.emptySince.IsZero() && now.Sub(r.emptySince) > EMPTY_ROOM_GRACE {
		r.abort(AbortDisbandTimeout)
		return
	}

	if r.endsAt.IsZero() || now.Before(r.endsAt) {
		return
	}

	switch r.phase {
	case PhaseReady:
		r.startInput(now)
	case PhaseModeSelect:
		r.completeModeSelect(now)
	case PhaseInput:
		r.completeInput(now)
	case PhaseReveal:
		r.startDiscuss(now)
	case PhaseDiscuss:
		r.completeDiscuss(now)
	case PhaseVote:
		r.completeVote(now)
	case PhaseResult:
		if r.rematchRequested {
			if r.isCustomMode {
				r.startTopicCreation(now)
			} else {
				r.startModeSelect(now)
			}
			return
		}
		if r.isAutoRoom {
			r.abort(AbortAutoRoomEnd)
		}
	default:
		// LOBBY, TOPIC_CREATION and JUDGE carry no phase deadline
		log.Warn().Str("room", r.id).Str("phase", string(r.phase)).Msg("deadline fired in phase without one")
		r.endsAt = time.Time{}
	}
}

// reapLobbySlots removes disconnected lobby players whose grace window has
// expired. Returns true if the reaping tore the room down.
func (r *Room) reapLobbySlots(now time.Time) bool {
	if r.phase != PhaseLobby {
		return false
	}

	var expired []*playerState
	for _, p := range r.players {
		if !p.connected && !p.disconnectedAt.IsZero() && now.Sub(p.disconnectedAt) > LOBBY_DISCONNECT_TTL {
			expired = append(expired, p)
		}
	}
	if len(expired) == 0 {
		return false
	}

	for _, p := range expired {
		r.removePlayerSlot(p, now)
		if p.id == r.hostID {
			if r.isAutoRoom {
				r.hostID = ""
			} else {
				r.abort(AbortHostDisconnected)
				return true
			}
		}
	}
	r.broadcastState()
	r.pushDescription()
	return false
}
