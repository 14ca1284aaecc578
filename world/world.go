// Package world hosts WorldActor, the single logical writer spec.md
// §4.7 requires: every join, move, rename and disconnect flows through
// its mailbox, so GameState and the spawn wait queue never race.
package world

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/connection"
	"github.com/nullterm/gridwars/gamestate"
	"github.com/nullterm/gridwars/protocol"
	"github.com/nullterm/gridwars/spawn"
)

// Actor is the orchestrator: it is the only goroutine that mutates
// GameState and the spawn manager, and it binds playerIds in the
// connection registry. Registering, touching and removing a
// connection happen in that connection's own ConnectionActor.
type Actor struct {
	state   *gamestate.GameState
	spawner *spawn.Manager
	conns   *connection.Manager

	waitMessage string
	graceMs     time.Duration

	engine *actor.Engine
	self   *actor.PID

	graceTimers map[string]*time.Timer
}

// NewProducer builds a Props for WorldActor.
func NewProducer(engine *actor.Engine, state *gamestate.GameState, spawner *spawn.Manager, conns *connection.Manager, waitMessage string, graceMs time.Duration) *actor.Props {
	return actor.NewProps(func() actor.Actor {
		return &Actor{
			state:       state,
			spawner:     spawner,
			conns:       conns,
			waitMessage: waitMessage,
			graceMs:     graceMs,
			engine:      engine,
			graceTimers: make(map[string]*time.Timer),
		}
	})
}

func (a *Actor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		a.self = ctx.Self()

	case Join:
		ctx.Reply(a.handleJoin(msg))

	case SetName:
		a.state.RenamePlayer(msg.PlayerID, msg.Name)

	case Move:
		a.handleMove(msg)

	case Disconnect:
		a.handleDisconnect(msg)

	case graceExpired:
		a.handleGraceExpired(msg)

	case StatusRequest:
		ctx.Reply(a.handleStatus())

	case actor.Stopping:
		for _, t := range a.graceTimers {
			t.Stop()
		}

	case actor.Stopped:
	}
}

func (a *Actor) handleJoin(msg Join) JoinResult {
	if msg.RequestedPlayerID != "" {
		if p, ok := a.state.Player(msg.RequestedPlayerID); ok {
			if timer, has := a.graceTimers[p.PlayerID]; has {
				timer.Stop()
				delete(a.graceTimers, p.PlayerID)
			}
			a.state.RebindClient(p.PlayerID, msg.ClientID)
			a.conns.Bind(msg.ClientID, p.PlayerID)
			snap := a.state.Serialize(time.Now())
			return JoinResult{PlayerID: p.PlayerID, Resumed: true, GameState: &snap}
		}
	}

	playerID := msg.RequestedPlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}
	a.state.AddPlayer(playerID, msg.PlayerName, msg.ClientID)
	a.conns.Bind(msg.ClientID, playerID)

	occupied := a.state.ActivePositions()
	point, ok := a.spawner.FindSpawn(occupied)
	if !ok {
		a.spawner.EnqueueWait(playerID)
		return JoinResult{PlayerID: playerID, Waiting: true, WaitMessage: a.waitMessage}
	}

	a.state.PlacePlayer(playerID, point.X, point.Y)
	a.broadcastAll(protocol.TypePlayerJoined, protocol.PlayerJoinedPayload{
		PlayerID:   playerID,
		PlayerName: msg.PlayerName,
		X:          point.X,
		Y:          point.Y,
	})
	snap := a.state.Serialize(time.Now())
	return JoinResult{PlayerID: playerID, GameState: &snap}
}

func (a *Actor) handleMove(msg Move) {
	result := a.state.MovePlayer(msg.PlayerID, msg.Dx, msg.Dy, msg.Seq)
	if result.Ok {
		return
	}

	conn, ok := a.conns.ByPlayerID(msg.PlayerID)
	if !ok {
		return
	}
	a.sendTo(conn, protocol.TypeError, protocol.ErrorPayload{
		Code:    protocol.ErrCodeInvalidMove,
		Message: "move rejected: " + string(result.Reason),
		Context: protocol.ErrorContext{
			AttemptedX:    result.AttemptedX,
			AttemptedY:    result.AttemptedY,
			CurrentX:      result.CurrentX,
			CurrentY:      result.CurrentY,
			Reason:        string(result.Reason),
			FailingAction: "MOVE",
		},
	})
}

func (a *Actor) handleDisconnect(msg Disconnect) {
	if a.graceMs <= 0 {
		a.state.RemovePlayer(msg.PlayerID)
		a.broadcastAll(protocol.TypePlayerLeft, protocol.PlayerLeftPayload{PlayerID: msg.PlayerID})
		a.drainWaitQueue()
		return
	}

	a.state.SetGrace(msg.PlayerID)
	timer := time.AfterFunc(a.graceMs, func() {
		a.engine.Send(a.self, graceExpired{PlayerID: msg.PlayerID}, nil)
	})
	a.graceTimers[msg.PlayerID] = timer
}

func (a *Actor) handleGraceExpired(msg graceExpired) {
	delete(a.graceTimers, msg.PlayerID)
	p, ok := a.state.Player(msg.PlayerID)
	if !ok || p.State != gamestate.StateDisconnectedGrace {
		return
	}
	a.state.RemovePlayer(msg.PlayerID)
	a.broadcastAll(protocol.TypePlayerLeft, protocol.PlayerLeftPayload{PlayerID: msg.PlayerID})
	a.drainWaitQueue()
}

func (a *Actor) handleStatus() StatusResponse {
	return StatusResponse{
		ConnectedPlayers: len(a.state.ActivePositions()),
		WaitingPlayers:   a.spawner.WaitQueueLen(),
		Score:            a.state.Score(),
	}
}

// drainWaitQueue assigns freed spawns to queued players, oldest
// first, stopping once either the queue is empty or no spot is free.
func (a *Actor) drainWaitQueue() {
	for {
		if a.spawner.WaitQueueLen() == 0 {
			return
		}
		occupied := a.state.ActivePositions()
		point, ok := a.spawner.FindSpawn(occupied)
		if !ok {
			return
		}
		playerID, ok := a.spawner.DequeueNextWaiting()
		if !ok {
			return
		}
		a.state.PlacePlayer(playerID, point.X, point.Y)

		name := ""
		if p, ok := a.state.Player(playerID); ok {
			name = p.PlayerName
		}
		a.broadcastAll(protocol.TypePlayerJoined, protocol.PlayerJoinedPayload{
			PlayerID:   playerID,
			PlayerName: name,
			X:          point.X,
			Y:          point.Y,
		})
	}
}

func (a *Actor) broadcastAll(t protocol.Type, payload interface{}) {
	msg, err := protocol.Encode(t, protocol.NowMillis(), "", payload)
	if err != nil {
		logrus.WithError(err).Error("world: failed to encode broadcast message")
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("world: failed to marshal broadcast message")
		return
	}
	for _, c := range a.conns.All() {
		select {
		case c.Send <- raw:
		default:
			logrus.WithField("clientId", c.ClientID).Warn("world: outbound buffer full, dropping frame")
		}
	}
}

func (a *Actor) sendTo(c *connection.Connection, t protocol.Type, payload interface{}) {
	msg, err := protocol.Encode(t, protocol.NowMillis(), "", payload)
	if err != nil {
		logrus.WithError(err).Error("world: failed to encode message")
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("world: failed to marshal message")
		return
	}
	select {
	case c.Send <- raw:
	default:
		logrus.WithField("clientId", c.ClientID).Warn("world: outbound buffer full, dropping frame")
	}
}
