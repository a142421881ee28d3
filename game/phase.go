package game

import "time"

// Phase is a named stage of the fixed game sequence. A room walks
// LOBBY → (MODE_SELECT | TOPIC_CREATION) → READY → INPUT → REVEAL →
// DISCUSS → VOTE → JUDGE → RESULT and may loop back to MODE_SELECT on
// rematch.
type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhaseModeSelect    Phase = "MODE_SELECT"
	PhaseTopicCreation Phase = "TOPIC_CREATION"
	PhaseReady         Phase = "READY"
	PhaseInput         Phase = "INPUT"
	PhaseReveal        Phase = "REVEAL"
	PhaseDiscuss       Phase = "DISCUSS"
	PhaseVote          Phase = "VOTE"
	PhaseJudge         Phase = "JUDGE"
	PhaseResult        Phase = "RESULT"
)

// Mode is the game variant. Custom rooms draw prompts from
// player-submitted topics instead of the built-in lists.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeLove    Mode = "love"
	ModeWork    Mode = "work"
	ModeCustom  Mode = "custom"
)

func validSelectableMode(m Mode) bool {
	switch m {
	case ModeClassic, ModeLove, ModeWork:
		return true
	}
	return false
}

// --- Phase durations ---
const (
	READY_COUNTDOWN      = time.Second * 3
	MODE_SELECT_DURATION = time.Second * 30
	INPUT_DURATION       = time.Second * 60
	REVEAL_DURATION      = time.Second * 10
	DISCUSS_PER_PLAYER   = time.Second * 15
	VOTE_DURATION        = time.Second * 30
	RESULT_AUTO_END      = time.Second * 30
	REMATCH_DELAY        = time.Second * 3
	LOBBY_DISCONNECT_TTL = time.Second * 30
	EMPTY_ROOM_GRACE     = time.Second * 2
	IDLE_TIMEOUT         = time.Minute * 5
	MATCH_DURATION_LIMIT = time.Minute * 30
)

// --- Capacity ---
const (
	MIN_PLAYERS       = 3
	FRIEND_ROOM_CAP   = 8
	AUTO_ROOM_CAP     = 3
	ICON_POOL_SIZE    = 12
	NICKNAME_GRAPHEME = 8
	MAX_CUSTOM_TOPICS = 30
	MAX_TOPIC_RUNES   = 60
	MAX_SECRET_RUNES  = 100
	MAX_CHAT_RUNES    = 200
)

// DEFAULT_SECRET fills the slot of a player who let the input deadline
// pass without submitting.
const DEFAULT_SECRET = "ごめん、思いつかなかった…"

// VoteNone is the sentinel vote target meaning "no vote". It is excluded
// from the majority calculation when judging.
const VoteNone = "NONE"
