// Package predictor applies the local player's own moves optimistically,
// against the same validation order the server uses, then replays any
// still-pending inputs once an authoritative position arrives
// (spec.md §4.9).
package predictor

import (
	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/gamestate"
)

// PendingInput is one not-yet-acknowledged move, identified by the
// sequence number the reconciler uses to discard acknowledged inputs.
type PendingInput struct {
	Seq    uint64
	Dx, Dy int
}

// Predictor tracks the local player's predicted position and the
// inputs applied since the last authoritative snapshot.
type Predictor struct {
	board *board.Board

	x, y    int
	hasPos  bool
	seq     uint64
	pending []PendingInput
}

// New builds a Predictor validating moves against b.
func New(b *board.Board) *Predictor {
	return &Predictor{board: b}
}

// SetAuthoritative overwrites the predicted position with a server
// value and clears pending inputs — used when the first authoritative
// position for the local player arrives.
func (p *Predictor) SetAuthoritative(x, y int) {
	p.x, p.y = x, y
	p.hasPos = true
	p.pending = nil
}

// Position returns the current predicted position.
func (p *Predictor) Position() (int, int, bool) {
	return p.x, p.y, p.hasPos
}

// ApplyInput optimistically applies a local move intent against
// occupied (other players' last known positions) and entities. It
// returns the assigned sequence number and whether the move was
// accepted locally; a rejected move is not queued and does not move
// the predicted position, matching the server's own rejection.
func (p *Predictor) ApplyInput(dx, dy int, occupied map[board.Point]struct{}, entities []gamestate.Entity) (uint64, gamestate.MoveResult) {
	p.seq++
	seq := p.seq

	if !p.hasPos {
		return seq, gamestate.MoveResult{Ok: false, Reason: gamestate.ReasonBounds}
	}

	result := gamestate.ValidateMove(p.board, entities, occupied, p.x, p.y, p.x+dx, p.y+dy)
	if !result.Ok {
		return seq, result
	}

	p.x, p.y = p.x+dx, p.y+dy
	p.pending = append(p.pending, PendingInput{Seq: seq, Dx: dx, Dy: dy})
	return seq, result
}

// Reconcile resets the predicted position to the server's
// authoritative (x,y), drops every pending input up to and including
// ackedSeq, and replays what's left so in-flight inputs aren't lost
// (spec.md §4.10's idempotency requirement).
func (p *Predictor) Reconcile(x, y int, ackedSeq uint64, occupied map[board.Point]struct{}, entities []gamestate.Entity) {
	p.x, p.y = x, y
	p.hasPos = true

	remaining := p.pending[:0]
	for _, in := range p.pending {
		if in.Seq <= ackedSeq {
			continue
		}
		remaining = append(remaining, in)
	}
	p.pending = remaining

	replay := append([]PendingInput(nil), p.pending...)
	p.pending = nil
	for _, in := range replay {
		result := gamestate.ValidateMove(p.board, entities, occupied, p.x, p.y, p.x+in.Dx, p.y+in.Dy)
		if !result.Ok {
			continue
		}
		p.x, p.y = p.x+in.Dx, p.y+in.Dy
		p.pending = append(p.pending, in)
	}
}

// PendingCount reports how many locally-applied inputs have not yet
// been acknowledged by a server snapshot.
func (p *Predictor) PendingCount() int {
	return len(p.pending)
}
