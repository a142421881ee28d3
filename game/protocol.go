package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Every frame on the wire is a JSON envelope {t, p}. Payloads are decoded
// into concrete structs at the connection boundary so the room actor only
// ever sees well-typed messages.

const (
	// client → server
	MsgJoin              = "join"
	MsgAuto              = "auto"
	MsgStart             = "start"
	MsgStartGame         = "startGame"
	MsgSelectMode        = "selectMode"
	MsgModeStamp         = "modeStamp"
	MsgAddCustomTopic    = "addCustomTopic"
	MsgRemoveCustomTopic = "removeCustomTopic"
	MsgStartCustomGame   = "startCustomGame"
	MsgSubmitSecret      = "submitSecret"
	MsgRevealReady       = "revealReady"
	MsgChat              = "chat"
	MsgEndDiscuss        = "endDiscuss"
	MsgVote              = "vote"
	MsgRematch           = "rematch"
	MsgEndGame           = "endGame"
	MsgExitGame          = "exitGame"
	MsgLeave             = "leave"
	MsgDisband           = "disband"
	MsgPing              = "ping"
	MsgPhaseChange       = "phaseChange"

	// server → client
	MsgYou          = "you"
	MsgState        = "state"
	MsgPhase        = "phase"
	MsgCustomTopics = "customTopics"
	MsgAbort        = "abort"
	MsgWarn         = "warn"
	MsgPong         = "pong"
)

var ErrMalformedMessage = errors.New("malformed message")

type envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

// --- client payloads ---

type joinPayload struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

type selectModePayload struct {
	Mode Mode `json:"mode"`
}

type modeStampPayload struct {
	Mode Mode `json:"mode"`
}

type topicPayload struct {
	Text string `json:"text"`
}

type removeTopicPayload struct {
	Index int `json:"index"`
}

type secretPayload struct {
	Text string `json:"text"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type votePayload struct {
	Target string `json:"target"`
}

type phaseChangePayload struct {
	RoundID  string `json:"roundId"`
	PhaseSeq uint64 `json:"phaseSeq"`
}

// clientMessage is one decoded inbound frame routed into a room's mailbox.
type clientMessage struct {
	t       string
	payload any
	from    string // player id, filled in by the read pump
}

// decodeClientMessage validates the envelope and its payload shape. Unknown
// types and undecodable payloads are protocol errors.
func decodeClientMessage(data []byte) (clientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return clientMessage{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	msg := clientMessage{t: env.T}

	var payload any
	switch env.T {
	case MsgJoin, MsgAuto:
		payload = &joinPayload{}
	case MsgSelectMode:
		payload = &selectModePayload{}
	case MsgModeStamp:
		payload = &modeStampPayload{}
	case MsgAddCustomTopic:
		payload = &topicPayload{}
	case MsgRemoveCustomTopic:
		payload = &removeTopicPayload{}
	case MsgSubmitSecret:
		payload = &secretPayload{}
	case MsgChat:
		payload = &chatPayload{}
	case MsgVote:
		payload = &votePayload{}
	case MsgPhaseChange:
		payload = &phaseChangePayload{}
	case MsgStart, MsgStartGame, MsgStartCustomGame, MsgRevealReady,
		MsgEndDiscuss, MsgRematch, MsgEndGame, MsgExitGame, MsgLeave,
		MsgDisband, MsgPing:
		return msg, nil
	default:
		return clientMessage{}, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.T)
	}

	if err := json.Unmarshal(env.P, payload); err != nil {
		return clientMessage{}, fmt.Errorf("%w: bad %s payload: %w", ErrMalformedMessage, env.T, err)
	}
	msg.payload = payload
	return msg, nil
}

// --- server payloads ---

type youPayload struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type phasePayload struct {
	Phase    Phase  `json:"phase"`
	EndsAt   int64  `json:"endsAt,omitempty"` // unix millis, 0 = no deadline
	RoundID  string `json:"roundId"`
	PhaseSeq uint64 `json:"phaseSeq"`
}

type chatEventPayload struct {
	From string `json:"from"`
	Name string `json:"name"`
	Text string `json:"text"`
}

type stampTallyPayload struct {
	Stamps map[Mode]int `json:"stamps"`
}

type topicsPayload struct {
	Topics []string `json:"topics"`
}

type abortPayload struct {
	Reason AbortReason `json:"reason"`
}

type warnPayload struct {
	Code WarnCode `json:"code"`
}

func encodeServerMessage(t string, p any) []byte {
	data, err := json.Marshal(envelope{T: t, P: mustRaw(p)})
	if err != nil {
		log.Error().Err(err).Str("type", t).Msg("failed to encode server message")
		return nil
	}
	return data
}

func mustRaw(p any) json.RawMessage {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode payload")
		return nil
	}
	return raw
}

func makeWarn(code WarnCode) []byte {
	return encodeServerMessage(MsgWarn, warnPayload{Code: code})
}

func makeAbort(reason AbortReason) []byte {
	return encodeServerMessage(MsgAbort, abortPayload{Reason: reason})
}

func makePong() []byte {
	return encodeServerMessage(MsgPong, nil)
}
