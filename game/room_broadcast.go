package game

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// broadcast fans data out to every live connection. Each send is isolated:
// a stale connection drops its frame and nothing else.
func (r *Room) broadcast(data []byte) {
	if data == nil {
		return
	}
	for _, p := range r.players {
		if !p.connected || p.conn == nil {
			continue
		}
		if err := p.conn.Send(data); err != nil {
			log.Warn().Err(err).Str("room", r.id).Str("player", p.id).Msg("dropping frame for stale connection")
		}
	}
}

func (r *Room) broadcastPhase() {
	r.broadcast(encodeServerMessage(MsgPhase, phasePayload{
		Phase:    r.phase,
		EndsAt:   unixMillisOrZero(r.endsAt),
		RoundID:  r.roundID,
		PhaseSeq: r.phaseSeq,
	}))
}

// broadcastState sends the full authoritative snapshot. The projection is
// invariant-checked first; a failed check is logged but the snapshot still
// goes out, because clients depend on receiving something every mutation.
func (r *Room) broadcastState() {
	snapshot := r.buildSnapshot()
	if err := snapshot.validate(); err != nil {
		log.Error().Err(err).Str("room", r.id).Msg("snapshot failed invariant check, sending anyway")
	}
	r.broadcast(encodeServerMessage(MsgState, snapshot))
}

func (r *Room) buildSnapshot() *RoomSnapshot {
	s := &RoomSnapshot{
		RoomID:       r.id,
		Mode:         r.mode,
		Phase:        r.phase,
		PhaseSeq:     r.phaseSeq,
		RoundID:      r.roundID,
		EndsAt:       unixMillisOrZero(r.endsAt),
		HostID:       r.hostID,
		IsAutoRoom:   r.isAutoRoom,
		IsCustomMode: r.isCustomMode,
		CustomTopics: append([]string{}, r.customTopics...),
		Players:      make([]PlayerSnapshot, 0, len(r.players)),
	}

	for _, p := range r.players {
		s.Players = append(s.Players, PlayerSnapshot{
			ID:        p.id,
			Name:      p.name,
			Icon:      p.icon,
			Connected: p.connected,
			Left:      p.left,
			IsHost:    p.id == r.hostID,
		})
	}

	if r.phase == PhaseModeSelect {
		s.ModeStamps = r.modeStampTally()
	}

	if r.round != nil {
		rs := &RoundSnapshot{
			Prompt:          r.round.prompt,
			SubmittedIDs:    sortedKeys(r.round.secrets),
			Chat:            append([]chatEntry{}, r.round.chat...),
			EndDiscussCount: len(r.round.endDiscussVotes),
		}
		for id := range r.round.votes {
			rs.VotedIDs = append(rs.VotedIDs, id)
		}
		sort.Strings(rs.VotedIDs)

		// the chosen secret becomes public at REVEAL, the tally at JUDGE
		if r.phase != PhaseInput {
			rs.RevealedOwner = r.round.revealedOwner
			rs.RevealedText = r.round.revealedText
		}
		rs.Tally = r.round.tally
		s.Round = rs
	}

	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
