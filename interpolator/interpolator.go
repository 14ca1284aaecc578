// Package interpolator renders remote players smoothly between
// discrete STATE_UPDATE snapshots: it keeps a short per-player history
// and, for a render time always computed as serverNow-delay, lerps
// between bracketing snapshots or bounded-extrapolates past the last
// one (spec.md §4.11).
package interpolator

import "time"

// Sample is one timestamped position, as received in a snapshot.
type Sample struct {
	At   time.Time
	X, Y float64
}

// Interpolator buffers the last few samples per remote player.
type Interpolator struct {
	bufferMax int
	byPlayer  map[string][]Sample
}

// New builds an Interpolator whose per-player ring buffer holds at
// most bufferMax samples.
func New(bufferMax int) *Interpolator {
	if bufferMax <= 0 {
		bufferMax = 20
	}
	return &Interpolator{bufferMax: bufferMax, byPlayer: make(map[string][]Sample)}
}

// AddSnapshot appends a new sample for playerID, evicting the oldest
// once the buffer is full. Out-of-order samples (At not after the
// last buffered one) are dropped.
func (in *Interpolator) AddSnapshot(playerID string, at time.Time, x, y float64) {
	buf := in.byPlayer[playerID]
	if len(buf) > 0 && !at.After(buf[len(buf)-1].At) {
		return
	}
	buf = append(buf, Sample{At: at, X: x, Y: y})
	if len(buf) > in.bufferMax {
		buf = buf[len(buf)-in.bufferMax:]
	}
	in.byPlayer[playerID] = buf
}

// Forget drops a player's buffered history, called on PLAYER_LEFT.
func (in *Interpolator) Forget(playerID string) {
	delete(in.byPlayer, playerID)
}

// PositionAt returns playerID's rendered position at renderTime
// (normally serverNow-delay, computed by the caller): linearly
// interpolated between the two samples bracketing renderTime, or
// extrapolated from the last known velocity if renderTime is past the
// newest sample, capped at maxExtrapolation beyond it. Returns false
// if no samples are buffered yet.
func (in *Interpolator) PositionAt(playerID string, renderTime time.Time, maxExtrapolation time.Duration) (x, y float64, ok bool) {
	buf := in.byPlayer[playerID]
	if len(buf) == 0 {
		return 0, 0, false
	}
	if len(buf) == 1 {
		return buf[0].X, buf[0].Y, true
	}

	newest := buf[len(buf)-1]
	oldest := buf[0]

	if !renderTime.After(oldest.At) {
		return oldest.X, oldest.Y, true
	}

	if renderTime.After(newest.At) {
		prev := buf[len(buf)-2]
		overshoot := renderTime.Sub(newest.At)
		if overshoot > maxExtrapolation {
			overshoot = maxExtrapolation
		}
		dt := newest.At.Sub(prev.At).Seconds()
		if dt <= 0 {
			return newest.X, newest.Y, true
		}
		vx := (newest.X - prev.X) / dt
		vy := (newest.Y - prev.Y) / dt
		return newest.X + vx*overshoot.Seconds(), newest.Y + vy*overshoot.Seconds(), true
	}

	for i := 1; i < len(buf); i++ {
		if buf[i].At.Before(renderTime) {
			continue
		}
		prev := buf[i-1]
		next := buf[i]
		span := next.At.Sub(prev.At).Seconds()
		if span <= 0 {
			return next.X, next.Y, true
		}
		frac := renderTime.Sub(prev.At).Seconds() / span
		return prev.X + (next.X-prev.X)*frac, prev.Y + (next.Y-prev.Y)*frac, true
	}

	return newest.X, newest.Y, true
}

// HasChangedCell reports whether cell (x,y) differs from (lastX,lastY),
// the redraw gate a render loop uses to skip unchanged cells. Callers
// round positions to cells and remember the last drawn cell themselves.
func (in *Interpolator) HasChangedCell(lastX, lastY, x, y int) bool {
	return lastX != x || lastY != y
}
