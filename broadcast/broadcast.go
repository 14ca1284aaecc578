// Package broadcast periodically snapshots shared world state and
// fans it out as STATE_UPDATE frames to every live connection, using
// the self-send ticker pattern the teacher's game tick loop follows.
package broadcast

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/connection"
	"github.com/nullterm/gridwars/gamestate"
	"github.com/nullterm/gridwars/protocol"
)

type tick struct{}

// Broadcaster is an Actor: its own ticker goroutine is the only thing
// that ever sends it a message, so state below never needs a lock.
type Broadcaster struct {
	state    *gamestate.GameState
	conns    *connection.Manager
	interval time.Duration

	engine *actor.Engine
	self   *actor.PID
	stopCh chan struct{}
}

// NewProducer builds a Props for a Broadcaster actor.
func NewProducer(engine *actor.Engine, state *gamestate.GameState, conns *connection.Manager, interval time.Duration) *actor.Props {
	return actor.NewProps(func() actor.Actor {
		return &Broadcaster{
			state:    state,
			conns:    conns,
			interval: interval,
			engine:   engine,
			stopCh:   make(chan struct{}),
		}
	})
}

func (b *Broadcaster) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case actor.Started:
		b.self = ctx.Self()
		go b.runTicker()

	case tick:
		b.broadcast()

	case actor.Stopping:
		select {
		case <-b.stopCh:
		default:
			close(b.stopCh)
		}

	case actor.Stopped:
	}
}

func (b *Broadcaster) runTicker() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			select {
			case <-b.stopCh:
				return
			default:
				b.engine.Send(b.self, tick{}, nil)
			}
		}
	}
}

func (b *Broadcaster) broadcast() {
	snapshot := b.state.Serialize(time.Now())

	msg, err := protocol.Encode(protocol.TypeStateUpdate, protocol.NowMillis(), "", snapshot)
	if err != nil {
		logrus.WithError(err).Error("broadcast: failed to encode state update")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("broadcast: failed to marshal state update")
		return
	}

	for _, c := range b.conns.All() {
		select {
		case c.Send <- payload:
		default:
			logrus.WithField("clientId", c.ClientID).Warn("broadcast: outbound buffer full, dropping frame")
		}
	}
}
