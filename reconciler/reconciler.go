// Package reconciler drives Predictor from incoming STATE_UPDATE
// snapshots: every snapshot corrects the local player's position and
// replays unacknowledged inputs, and a periodic tick re-applies the
// last snapshot so reconciliation stays idempotent even with no new
// traffic (spec.md §4.10).
package reconciler

import (
	"time"

	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/gamestate"
	"github.com/nullterm/gridwars/predictor"
	"github.com/nullterm/gridwars/protocol"
)

// Reconciler pairs a Predictor with the last snapshot it was given,
// so a periodic re-reconcile (triggered with no new network traffic)
// is a pure function of state already held — applying it twice in a
// row is a no-op.
type Reconciler struct {
	pred     *predictor.Predictor
	localID  string
	interval time.Duration

	lastSnapshot protocol.StatePayload
	haveSnapshot bool
}

// New builds a Reconciler for localPlayerID, reconciling pred against
// every OnStateUpdate and, if ticked, against the last snapshot again.
func New(pred *predictor.Predictor, localPlayerID string, interval time.Duration) *Reconciler {
	return &Reconciler{pred: pred, localID: localPlayerID, interval: interval}
}

// Interval reports the configured periodic-reconcile cadence.
func (r *Reconciler) Interval() time.Duration { return r.interval }

// OnStateUpdate corrects the predictor against a freshly received
// snapshot and remembers it for the next periodic tick. The
// acknowledged sequence number is read off the local player's own
// PlayerView.AckedSeq, the server's record of the highest MOVE it has
// processed for this player — not a client-local counter.
func (r *Reconciler) OnStateUpdate(snapshot protocol.StatePayload) {
	r.lastSnapshot = snapshot
	r.haveSnapshot = true
	r.apply(snapshot)
}

// Tick re-applies the last snapshot. With no pending inputs and no new
// snapshot, this is idempotent: the predicted position is unchanged.
func (r *Reconciler) Tick() {
	if !r.haveSnapshot {
		return
	}
	r.apply(r.lastSnapshot)
}

func (r *Reconciler) apply(snapshot protocol.StatePayload) {
	var selfX, selfY int
	var ackedSeq uint64
	found := false
	occupied := make(map[board.Point]struct{}, len(snapshot.Players))
	for _, pv := range snapshot.Players {
		if pv.PlayerID == r.localID {
			selfX, selfY = pv.X, pv.Y
			ackedSeq = pv.AckedSeq
			found = true
			continue
		}
		occupied[board.Point{X: pv.X, Y: pv.Y}] = struct{}{}
	}
	if !found {
		return
	}

	entities := make([]gamestate.Entity, 0, len(snapshot.Entities))
	for _, ev := range snapshot.Entities {
		entities = append(entities, gamestate.Entity{
			EntityID:   ev.EntityID,
			X:          ev.X,
			Y:          ev.Y,
			Glyph:      ev.Glyph,
			Color:      ev.Color,
			Solid:      ev.Solid,
			ZOrder:     ev.ZOrder,
			EntityType: ev.EntityType,
		})
	}

	r.pred.Reconcile(selfX, selfY, ackedSeq, occupied, entities)
}
