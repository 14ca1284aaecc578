package wsserver

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/connection"
	"github.com/nullterm/gridwars/protocol"
)

type livenessTick struct{}

// LivenessSweeper is an Actor implementing spec.md §4.5's ping/pong
// keepalive: on every tick it closes any connection whose last activity
// (including a PONG reply) predates pongTimeout, then pings each
// connection still registered. Mirrors broadcast.Broadcaster's self-send ticker
// pattern — its own ticker goroutine is the only thing that ever
// sends it a message.
type LivenessSweeper struct {
	conns        *connection.Manager
	pingInterval time.Duration
	pongTimeout  time.Duration

	engine *actor.Engine
	self   *actor.PID
	stopCh chan struct{}
}

// NewLivenessProducer builds a Props for a LivenessSweeper actor.
func NewLivenessProducer(engine *actor.Engine, conns *connection.Manager, pingInterval, pongTimeout time.Duration) *actor.Props {
	return actor.NewProps(func() actor.Actor {
		return &LivenessSweeper{
			conns:        conns,
			pingInterval: pingInterval,
			pongTimeout:  pongTimeout,
			engine:       engine,
			stopCh:       make(chan struct{}),
		}
	})
}

func (s *LivenessSweeper) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case actor.Started:
		s.self = ctx.Self()
		go s.runTicker()

	case livenessTick:
		s.sweep()

	case actor.Stopping:
		select {
		case <-s.stopCh:
		default:
			close(s.stopCh)
		}

	case actor.Stopped:
	}
}

func (s *LivenessSweeper) runTicker() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			select {
			case <-s.stopCh:
				return
			default:
				s.engine.Send(s.self, livenessTick{}, nil)
			}
		}
	}
}

// sweep reaps connections stale past pongTimeout, then pings every
// connection still on the books.
func (s *LivenessSweeper) sweep() {
	cutoff := time.Now().Add(-s.pongTimeout)
	for _, clientID := range s.conns.StaleSince(cutoff) {
		c, ok := s.conns.ByClientID(clientID)
		if !ok {
			continue
		}
		logrus.WithField("clientId", clientID).Warn("wsserver: connection stale past pong timeout, closing")
		if c.Close != nil {
			c.Close()
		}
	}

	for _, c := range s.conns.All() {
		s.ping(c)
	}
}

func (s *LivenessSweeper) ping(c *connection.Connection) {
	msg, err := protocol.Encode(protocol.TypePing, protocol.NowMillis(), c.ClientID, nil)
	if err != nil {
		logrus.WithError(err).Error("wsserver: failed to encode ping")
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("wsserver: failed to marshal ping")
		return
	}
	select {
	case c.Send <- raw:
	default:
		logrus.WithField("clientId", c.ClientID).Warn("wsserver: outbound buffer full, dropping ping")
	}
}
