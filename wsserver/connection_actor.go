package wsserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/connection"
	"github.com/nullterm/gridwars/protocol"
	"github.com/nullterm/gridwars/world"
)

func encodeJSON(msg protocol.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// readTimeout bounds a single frame read, mirroring the teacher's
// connection handler so a half-open socket doesn't wedge the read loop.
const readTimeout = 90 * time.Second

type inboundFrame struct {
	raw []byte
}

type readLoopDone struct{}

// ConnectionActor owns one socket's lifecycle: registering it with the
// connection Manager, decoding inbound frames and routing them to
// WorldActor, and draining its outbound Send channel onto the wire.
type ConnectionActor struct {
	conn   *websocket.Conn
	engine *actor.Engine
	world  *actor.PID
	conns  *connection.Manager

	askTimeout time.Duration

	self           *actor.PID
	reg            *connection.Connection
	playerID       string
	stopReadLoop   chan struct{}
	readLoopExited chan struct{}
	done           chan struct{}
	closeOnce      sync.Once
	stopping       bool
}

// Args bundles a ConnectionActor's construction-time dependencies.
type Args struct {
	Conn       *websocket.Conn
	Engine     *actor.Engine
	WorldPID   *actor.PID
	Conns      *connection.Manager
	AskTimeout time.Duration
	Done       chan struct{}
}

// NewProducer builds a Props for a ConnectionActor.
func NewProducer(args Args) *actor.Props {
	return actor.NewProps(func() actor.Actor {
		return &ConnectionActor{
			conn:           args.Conn,
			engine:         args.Engine,
			world:          args.WorldPID,
			conns:          args.Conns,
			askTimeout:     args.AskTimeout,
			stopReadLoop:   make(chan struct{}),
			readLoopExited: make(chan struct{}),
			done:           args.Done,
		}
	})
}

func (a *ConnectionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case actor.Started:
		a.self = ctx.Self()
		a.reg = a.conns.Add()
		a.reg.Close = func() { _ = a.conn.Close() }
		go a.writeLoop()
		go a.readLoop()

	case inboundFrame:
		a.handleInbound(msg.raw)

	case readLoopDone:
		a.cleanup()

	case actor.Stopping:
		a.stopping = true
		a.signalAndWaitForReadLoop()
		a.cleanup()

	case actor.Stopped:
		a.closeOnce.Do(func() {
			if a.done != nil {
				close(a.done)
			}
		})
	}
}

func (a *ConnectionActor) handleInbound(raw []byte) {
	a.conns.Touch(a.reg.ClientID)

	msg, err := protocol.Decode(raw)
	if err != nil {
		a.sendError(protocol.ErrCodeUnknownType, "malformed message", protocol.ErrorContext{FailingAction: "decode"})
		return
	}

	switch msg.Type {
	case protocol.TypeConnect:
		a.handleConnect(msg)

	case protocol.TypeSetPlayerName:
		var payload protocol.SetPlayerNamePayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			a.sendError(protocol.ErrCodeUnknownType, "malformed SET_PLAYER_NAME", protocol.ErrorContext{FailingAction: string(msg.Type)})
			return
		}
		if a.playerID == "" {
			return
		}
		a.engine.Send(a.world, world.SetName{PlayerID: a.playerID, Name: payload.Name}, a.self)

	case protocol.TypeMove:
		var payload protocol.MovePayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			a.sendError(protocol.ErrCodeUnknownType, "malformed MOVE", protocol.ErrorContext{FailingAction: string(msg.Type)})
			return
		}
		if err := payload.Validate(); err != nil {
			a.sendError(protocol.ErrCodeInvalidMove, err.Error(), protocol.ErrorContext{
				AttemptedX: payload.Dx, AttemptedY: payload.Dy, FailingAction: string(msg.Type),
			})
			return
		}
		if a.playerID == "" {
			return
		}
		a.engine.Send(a.world, world.Move{PlayerID: a.playerID, Dx: payload.Dx, Dy: payload.Dy, Seq: payload.Seq}, a.self)

	case protocol.TypePing:
		a.sendMessage(protocol.TypePong, nil)

	case protocol.TypePong:
		// No-op: a.conns.Touch above already recorded this frame as
		// activity, which is all the liveness sweep needs.

	default:
		a.sendError(protocol.ErrCodeUnknownType, "unknown message type", protocol.ErrorContext{FailingAction: string(msg.Type)})
	}
}

func (a *ConnectionActor) handleConnect(msg protocol.Message) {
	var payload protocol.ConnectClientPayload
	_ = protocol.DecodePayload(msg, &payload)

	reply, err := a.engine.Ask(a.world, world.Join{
		ClientID:          a.reg.ClientID,
		RequestedPlayerID: payload.PlayerID,
		PlayerName:        payload.PlayerName,
	}, a.askTimeout)
	if err != nil {
		logrus.WithError(err).WithField("clientId", a.reg.ClientID).Error("wsserver: join request failed")
		a.sendError(protocol.ErrCodeInternal, "join failed", protocol.ErrorContext{FailingAction: string(protocol.TypeConnect)})
		return
	}

	result := reply.(world.JoinResult)
	a.playerID = result.PlayerID

	a.sendMessage(protocol.TypeConnect, protocol.ConnectServerPayload{
		ClientID:    a.reg.ClientID,
		PlayerID:    result.PlayerID,
		WaitMessage: result.WaitMessage,
		GameState:   result.GameState,
	})
}

func (a *ConnectionActor) sendMessage(t protocol.Type, payload interface{}) {
	msg, err := protocol.Encode(t, protocol.NowMillis(), a.reg.ClientID, payload)
	if err != nil {
		logrus.WithError(err).Error("wsserver: failed to encode outbound message")
		return
	}
	raw, err := encodeJSON(msg)
	if err != nil {
		logrus.WithError(err).Error("wsserver: failed to marshal outbound message")
		return
	}
	select {
	case a.reg.Send <- raw:
	default:
		logrus.WithField("clientId", a.reg.ClientID).Warn("wsserver: outbound buffer full, dropping frame")
	}
}

func (a *ConnectionActor) sendError(code, message string, ctx protocol.ErrorContext) {
	a.sendMessage(protocol.TypeError, protocol.ErrorPayload{Code: code, Message: message, Context: ctx})
}

// writeLoop drains the connection's outbound buffer onto the wire
// until it is closed by connection.Manager.Remove.
func (a *ConnectionActor) writeLoop() {
	for raw := range a.reg.Send {
		if err := websocket.Message.Send(a.conn, raw); err != nil {
			return
		}
	}
}

// readLoop mirrors the teacher's connection handler: blocking reads
// with a bounded deadline, reporting back to the actor via self-send
// so all state mutation happens on the actor's own goroutine.
func (a *ConnectionActor) readLoop() {
	defer close(a.readLoopExited)
	defer func() {
		a.engine.Send(a.self, readLoopDone{}, nil)
	}()

	for {
		select {
		case <-a.stopReadLoop:
			return
		default:
		}

		var raw []byte
		_ = a.conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := websocket.Message.Receive(a.conn, &raw)
		_ = a.conn.SetReadDeadline(time.Time{})
		if err != nil {
			return
		}

		a.engine.Send(a.self, inboundFrame{raw: raw}, nil)
	}
}

func (a *ConnectionActor) signalAndWaitForReadLoop() {
	select {
	case <-a.stopReadLoop:
		return
	default:
		close(a.stopReadLoop)
	}
	_ = a.conn.Close()

	select {
	case <-a.readLoopExited:
	case <-time.After(2 * time.Second):
		logrus.WithField("clientId", a.reg.ClientID).Warn("wsserver: timed out waiting for read loop to exit")
	}
}

func (a *ConnectionActor) cleanup() {
	if a.playerID != "" {
		a.engine.Send(a.world, world.Disconnect{PlayerID: a.playerID}, nil)
		a.playerID = ""
	}
	if a.reg != nil {
		a.conns.Remove(a.reg.ClientID)
	}
	if !a.stopping {
		a.engine.Stop(a.self)
	}
}
