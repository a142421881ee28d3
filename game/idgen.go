package game

import (
	"math/rand"
	"sync"
)

const roomIDCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const roomIDLength = 6

// Idgen generates short shareable room codes, unique among live rooms.
type Idgen struct {
	ids    map[string]struct{}
	locker sync.Mutex
}

func NewIdGen() Idgen {
	return Idgen{ids: make(map[string]struct{})}
}

func (g *Idgen) Generate() string {
	g.locker.Lock()
	defer g.locker.Unlock()

	for {
		buf := make([]byte, roomIDLength)
		for i := range buf {
			buf[i] = roomIDCharset[rand.Intn(len(roomIDCharset))]
		}
		id := string(buf)
		if _, taken := g.ids[id]; !taken {
			g.ids[id] = struct{}{}
			return id
		}
	}
}

func (g *Idgen) Dispose(id string) {
	g.locker.Lock()
	defer g.locker.Unlock()
	delete(g.ids, id)
}
