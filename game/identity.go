package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
)

// truncateGraphemes cuts s after limit user-perceived characters, so a
// nickname full of emoji or combined kana counts the way players see it.
func truncateGraphemes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	count := 0
	end := 0
	for g.Next() {
		count++
		_, end = g.Positions()
		if count == limit {
			break
		}
	}
	if count < limit {
		return s
	}
	return s[:end]
}

// dedupeNickname appends #2, #3, ... to the truncated base until no other
// player in the room carries the same name.
func dedupeNickname(base string, players []*playerState) string {
	taken := make(map[string]struct{}, len(players))
	for _, p := range players {
		taken[p.name] = struct{}{}
	}

	if _, exists := taken[base]; !exists {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s#%d", base, i)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}

func newPlayerID() string {
	return uuid.NewString()
}

func newRoundID() string {
	return uuid.NewString()
}

// iconPool hands out avatar icon ids 1..size, each to at most one player.
// When every icon is allocated the pool resets and starts reusing; icons
// are cosmetic, so collision is tolerated only once the pool is dry.
type iconPool struct {
	size  int
	inUse map[int]struct{}
}

func newIconPool(size int) *iconPool {
	return &iconPool{size: size, inUse: make(map[int]struct{})}
}

func (p *iconPool) allocate() int {
	if len(p.inUse) >= p.size {
		p.inUse = make(map[int]struct{})
	}
	for icon := 1; icon <= p.size; icon++ {
		if _, taken := p.inUse[icon]; !taken {
			p.inUse[icon] = struct{}{}
			return icon
		}
	}
	// unreachable after the reset above
	return 1
}

func (p *iconPool) release(icon int) {
	delete(p.inUse, icon)
}
