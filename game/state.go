package game

import (
	"fmt"
	"sort"
	"time"
)

func unixMillisOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// playerState is one slot in the room's ordered player list. A slot can
// outlive its transport connection (connected == false) while the lobby
// grace window runs.
type playerState struct {
	id             string
	name           string
	icon           int
	token          string
	connected      bool
	disconnectedAt time.Time
	left           bool
	conn           PlayerConn
}

type chatEntry struct {
	From string `json:"from"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// round is the mutable per-round sub-aggregate. Submission and vote maps
// are append-only: a second write for the same player id is rejected
// upstream, never overwritten here.
type round struct {
	prompt          string
	secrets         map[string]string
	revealedOwner   string
	revealedText    string
	votes           map[string]string // player id -> target id or VoteNone
	tally           *Tally
	chat            []chatEntry
	endDiscussVotes map[string]struct{}
	revealAcks      map[string]struct{}
}

func newRound(prompt string) *round {
	return &round{
		prompt:          prompt,
		secrets:         make(map[string]string),
		votes:           make(map[string]string),
		endDiscussVotes: make(map[string]struct{}),
		revealAcks:      make(map[string]struct{}),
	}
}

// Tally aggregates the round's votes. VoteNone ballots are counted apart
// and excluded from the majority calculation; a tie leaves multiple ids in
// Top and no winner.
type Tally struct {
	Top         []string       `json:"top"`
	Counts      map[string]int `json:"counts"`
	NoVotes     int            `json:"noVotes"`
	CitizensWin bool           `json:"citizensWin"`
}

func computeTally(votes map[string]string, owner string) *Tally {
	t := &Tally{Counts: make(map[string]int)}

	for _, target := range votes {
		if target == VoteNone {
			t.NoVotes++
			continue
		}
		t.Counts[target]++
	}

	max := 0
	for _, c := range t.Counts {
		if c > max {
			max = c
		}
	}
	for id, c := range t.Counts {
		if c == max && max > 0 {
			t.Top = append(t.Top, id)
		}
	}
	sort.Strings(t.Top)

	t.CitizensWin = len(t.Top) == 1 && t.Top[0] == owner
	return t
}

// --- outbound projection ---

type PlayerSnapshot struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      int    `json:"icon"`
	Connected bool   `json:"connected"`
	Left      bool   `json:"left"`
	IsHost    bool   `json:"isHost"`
}

type RoundSnapshot struct {
	Prompt          string      `json:"prompt"`
	SubmittedIDs    []string    `json:"submittedIds"`
	RevealedOwner   string      `json:"revealedOwner,omitempty"`
	RevealedText    string      `json:"revealedText,omitempty"`
	VotedIDs        []string    `json:"votedIds"`
	Tally           *Tally      `json:"tally,omitempty"`
	Chat            []chatEntry `json:"chat"`
	EndDiscussCount int         `json:"endDiscussCount"`
}

// RoomSnapshot is the full authoritative projection broadcast after every
// player-visible mutation. Secrets other than the revealed one never
// appear in it.
type RoomSnapshot struct {
	RoomID       string           `json:"roomId"`
	Mode         Mode             `json:"mode"`
	Phase        Phase            `json:"phase"`
	PhaseSeq     uint64           `json:"phaseSeq"`
	RoundID      string           `json:"roundId"`
	EndsAt       int64            `json:"endsAt,omitempty"`
	Players      []PlayerSnapshot `json:"players"`
	HostID       string           `json:"hostId,omitempty"`
	IsAutoRoom   bool             `json:"isAutoRoom"`
	IsCustomMode bool             `json:"isCustomMode"`
	CustomTopics []string         `json:"customTopics"`
	ModeStamps   map[Mode]int     `json:"modeStamps,omitempty"`
	Round        *RoundSnapshot   `json:"round,omitempty"`
}

// validate checks the projection against the aggregate invariants. A
// failure here is a programming defect; the snapshot is still delivered.
func (s *RoomSnapshot) validate() error {
	if s.RoomID == "" {
		return fmt.Errorf("snapshot missing room id")
	}
	if s.Phase == "" {
		return fmt.Errorf("snapshot missing phase")
	}

	seen := make(map[string]struct{}, len(s.Players))
	icons := make(map[int]string, len(s.Players))
	hostFound := s.HostID == ""
	for _, p := range s.Players {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate player id %s", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Connected {
			if other, dup := icons[p.Icon]; dup {
				return fmt.Errorf("icon %d held by both %s and %s", p.Icon, other, p.ID)
			}
			icons[p.Icon] = p.ID
		}
		if p.ID == s.HostID {
			hostFound = true
		}
	}
	if !hostFound {
		return fmt.Errorf("host %s not in player list", s.HostID)
	}

	if s.Round != nil && s.Round.Tally != nil {
		for id, c := range s.Round.Tally.Counts {
			if c < 0 {
				return fmt.Errorf("negative vote count for %s", id)
			}
		}
	}
	return nil
}
