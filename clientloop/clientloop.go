// Package clientloop wires NetClient, Predictor, Reconciler and
// Interpolator into the client's per-frame update, and defines the
// Renderer/Input collaborator interfaces an embedding application
// implements (spec.md §4.12).
package clientloop

import (
	"sync"
	"time"

	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/interpolator"
	"github.com/nullterm/gridwars/netclient"
	"github.com/nullterm/gridwars/predictor"
	"github.com/nullterm/gridwars/protocol"
	"github.com/nullterm/gridwars/reconciler"
)

// Input is polled once per frame for a queued local movement intent.
type Input interface {
	Poll() (dx, dy int, ok bool)
}

// RemoteView is one other player's interpolated render position.
type RemoteView struct {
	PlayerID   string
	PlayerName string
	X, Y       float64
}

// RenderState is the per-frame snapshot a Renderer draws.
type RenderState struct {
	Board        *board.Board
	LocalX       float64
	LocalY       float64
	LocalHasPos  bool
	Remotes      []RemoteView
	Score        int
	WaitMessage  string
}

// Renderer draws one frame. Implementations are the external
// collaborator the spec leaves unspecified (terminal, test harness, etc).
type Renderer interface {
	Render(state RenderState) error
}

// Loop owns one session's client-side state and drives the
// prediction/reconciliation/interpolation pipeline each frame.
type Loop struct {
	net   *netclient.Client
	input Input
	rend  Renderer

	mu               sync.Mutex
	board            *board.Board
	pred             *predictor.Predictor
	recon            *reconciler.Reconciler
	interp           *interpolator.Interpolator
	localPlayerID    string
	interpolationDelay time.Duration
	extrapolationMax   time.Duration
	remoteMeta       map[string]string // playerID -> playerName
	waitMessage      string
	score            int
}

// Options configures interpolation delay/extrapolation and the buffer
// depth handed to the interpolator.
type Options struct {
	RemoteBufferMax     int
	InterpolationDelay  time.Duration
	ExtrapolationMaxMs  time.Duration
	ReconciliationEvery time.Duration
}

// New builds a Loop. Call HandleMessage for every inbound protocol
// message and Tick once per render frame.
func New(net *netclient.Client, input Input, rend Renderer, opts Options) *Loop {
	return &Loop{
		net:                net,
		input:              input,
		rend:               rend,
		interp:             interpolator.New(opts.RemoteBufferMax),
		interpolationDelay: opts.InterpolationDelay,
		extrapolationMax:   opts.ExtrapolationMaxMs,
		remoteMeta:         make(map[string]string),
	}
}

// HandleMessage processes one inbound protocol message from NetClient's
// OnMessage callback.
func (l *Loop) HandleMessage(msg protocol.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch msg.Type {
	case protocol.TypeConnect:
		var payload protocol.ConnectServerPayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			return
		}
		l.localPlayerID = payload.PlayerID
		l.waitMessage = payload.WaitMessage
		if payload.GameState != nil {
			l.applySnapshotLocked(*payload.GameState, serverTime(msg))
		}

	case protocol.TypeStateUpdate:
		var payload protocol.StatePayload
		if err := protocol.DecodePayload(msg, &payload); err != nil {
			return
		}
		l.applySnapshotLocked(payload, serverTime(msg))

	case protocol.TypePlayerJoined:
		var payload protocol.PlayerJoinedPayload
		if err := protocol.DecodePayload(msg, &payload); err == nil {
			l.remoteMeta[payload.PlayerID] = payload.PlayerName
		}

	case protocol.TypePlayerLeft:
		var payload protocol.PlayerLeftPayload
		if err := protocol.DecodePayload(msg, &payload); err == nil {
			delete(l.remoteMeta, payload.PlayerID)
			l.interp.Forget(payload.PlayerID)
		}
	}
}

// serverTime converts a Message's wire timestamp (epoch ms, spec.md
// §6) into the clock interpolator.AddSnapshot keys its ring buffer on,
// so remote positions are interpolated against when the server
// observed them, not when this client happened to receive the frame.
func serverTime(msg protocol.Message) time.Time {
	return time.UnixMilli(int64(msg.Timestamp))
}

func (l *Loop) applySnapshotLocked(payload protocol.StatePayload, at time.Time) {
	if l.board == nil {
		grid := make([][]rune, len(payload.Board.Grid))
		for y, row := range payload.Board.Grid {
			r := make([]rune, len(row))
			for x, cell := range row {
				if len(cell) > 0 {
					r[x] = []rune(cell)[0]
				} else {
					r[x] = ' '
				}
			}
			grid[y] = r
		}
		l.board = board.New(payload.Board.Width, payload.Board.Height, grid, nil)
		l.pred = predictor.New(l.board)
		l.recon = reconciler.New(l.pred, l.localPlayerID, 0)
	}

	l.score = payload.Score
	for _, pv := range payload.Players {
		if pv.PlayerID == l.localPlayerID {
			if !l.predHasPosition() {
				l.pred.SetAuthoritative(pv.X, pv.Y)
			} else {
				l.recon.OnStateUpdate(payload)
			}
			continue
		}
		l.remoteMeta[pv.PlayerID] = pv.PlayerName
		l.interp.AddSnapshot(pv.PlayerID, at, float64(pv.X), float64(pv.Y))
	}
}

func (l *Loop) predHasPosition() bool {
	if l.pred == nil {
		return false
	}
	_, _, ok := l.pred.Position()
	return ok
}

// Tick applies queued local input, advances rendering, and draws one
// frame via the configured Renderer.
func (l *Loop) Tick(now time.Time) error {
	l.mu.Lock()

	if l.pred != nil && l.input != nil {
		if dx, dy, ok := l.input.Poll(); ok {
			seq, result := l.pred.ApplyInput(dx, dy, nil, nil)
			if result.Ok {
				_ = l.net.Send(protocol.TypeMove, protocol.MovePayload{Dx: dx, Dy: dy, Seq: seq})
			}
		}
	}

	state := RenderState{Board: l.board, Score: l.score, WaitMessage: l.waitMessage}
	if l.pred != nil {
		x, y, ok := l.pred.Position()
		state.LocalX, state.LocalY, state.LocalHasPos = float64(x), float64(y), ok
	}

	renderTime := now.Add(-l.interpolationDelay)
	for playerID, name := range l.remoteMeta {
		x, y, ok := l.interp.PositionAt(playerID, renderTime, l.extrapolationMax)
		if !ok {
			continue
		}
		state.Remotes = append(state.Remotes, RemoteView{PlayerID: playerID, PlayerName: name, X: x, Y: y})
	}

	l.mu.Unlock()

	if l.rend == nil {
		return nil
	}
	return l.rend.Render(state)
}

// LocalPlayerID returns the session's current playerId, set once the
// first CONNECT reply arrives.
func (l *Loop) LocalPlayerID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.localPlayerID
}
