package game

// AbortReason is broadcast with the final `abort` message before a room is
// torn down. Clients treat every reason as "return to menu".
type AbortReason string

const (
	AbortInsufficientPlayers AbortReason = "insufficient_players"
	AbortDisbanded           AbortReason = "disbanded"
	AbortDisbandTimeout      AbortReason = "disband_timeout"
	AbortHostLeft            AbortReason = "host_left"
	AbortHostDisconnected    AbortReason = "host_disconnected"
	AbortExplicitEnd         AbortReason = "explicit_end"
	AbortBelowMinimum        AbortReason = "below_minimum"
	AbortPlayerDisconnected  AbortReason = "player_disconnected"
	AbortAutoRoomEnd         AbortReason = "auto_room_end"
	AbortIdleTimeout         AbortReason = "idle_timeout"
	AbortMatchTimeout        AbortReason = "match_timeout"
)

// WarnCode is a non-fatal rejection answered to a single client. No state
// mutation accompanies a warning.
type WarnCode string

const (
	WarnInvalidOperation WarnCode = "invalid_operation"
	WarnNotInPhase       WarnCode = "not_in_phase"
	WarnRoomNotFound     WarnCode = "room_not_found"
	WarnBadRoomID        WarnCode = "bad_room_id"
	WarnNicknameRequired WarnCode = "nickname_required"
	WarnAlreadySubmitted WarnCode = "already_submitted"
	WarnSelfVote         WarnCode = "self_vote"
	WarnNotHost          WarnCode = "not_host"
	WarnChatDisabled     WarnCode = "chat_disabled"
	WarnRateLimited      WarnCode = "rate_limited"
	WarnTargetNotFound   WarnCode = "target_not_found"
	WarnRoomClosed       WarnCode = "room_closed"
	WarnRoomFull         WarnCode = "room_full"
)
