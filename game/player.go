package game

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"secretwolf/metrics"
)

// PlayerConn is the room actor's view of one live connection. Send and
// Ping enqueue without blocking; a full outbox means the connection is
// stale and the frame is dropped for that recipient only.
type PlayerConn interface {
	Send(data []byte) error
	Ping() error
	Close(reason string)
}

var errOutboxFull = errors.New("connection outbox full")

type playerConn struct {
	session   NetworkSession
	outbox    chan []byte
	pings     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
}

func newPlayerConn(session NetworkSession) *playerConn {
	return &playerConn{
		session: session,
		outbox:  make(chan []byte, 256),
		pings:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(5, 10),
	}
}

func (c *playerConn) Send(data []byte) error {
	if data == nil {
		return nil
	}
	select {
	case c.outbox <- data:
		return nil
	case <-c.done:
		return nil
	default:
		return errOutboxFull
	}
}

func (c *playerConn) Ping() error {
	select {
	case c.pings <- struct{}{}:
	default:
	}
	return nil
}

// Close is safe from any goroutine: the write pump closes on transport
// errors while the room actor closes on teardown, and a dying socket
// produces both at once.
func (c *playerConn) Close(reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.session.Close(reason)
	})
}

// ReadPump decodes inbound frames and forwards them into the room's
// mailbox. Protocol errors never reach the actor: malformed frames are
// dropped here, rate-limit violations answered with a warning.
func (c *playerConn) ReadPump(r *Room, playerID string) {
	defer r.RequestRemoval(playerID)

	for {
		data, err := c.session.Read()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.Send(makeWarn(WarnRateLimited))
			continue
		}

		msg, err := decodeClientMessage(data)
		if err != nil {
			log.Debug().Err(err).Str("player", playerID).Msg("dropping malformed frame")
			continue
		}
		if msg.t == MsgJoin || msg.t == MsgAuto {
			// join is only valid as the handshake frame
			c.Send(makeWarn(WarnInvalidOperation))
			continue
		}

		msg.from = playerID
		metrics.InboundMessages.Inc()
		if !r.Deliver(msg) {
			return
		}
	}
}

func (c *playerConn) WritePump() {
	for {
		select {
		case data := <-c.outbox:
			if err := c.session.Write(data); err != nil {
				c.Close("")
				return
			}
		case <-c.pings:
			if err := c.session.Ping(); err != nil {
				c.Close("")
				return
			}
		case <-c.done:
			return
		}
	}
}
