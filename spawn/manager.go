// Package spawn implements the ordered spawn list with clear-radius
// availability testing and the FIFO wait queue described in spec.md §4.3.
package spawn

import (
	"github.com/nullterm/gridwars/board"
)

// Manager holds the effective (capped) spawn list, the clear radius,
// and the FIFO wait queue of playerIDs deferred for lack of a spawn.
type Manager struct {
	board  *board.Board
	points []board.Point
	radius int

	wait []string
}

// New builds a Manager. If the board carries no spawn points, the
// effective list is a single synthetic center point, per spec.md §3.
func New(b *board.Board, maxCount, clearRadius int) *Manager {
	raw := b.SpawnPoints()
	if maxCount < 0 {
		maxCount = 0
	}
	if maxCount > len(raw) {
		maxCount = len(raw)
	}
	points := append([]board.Point(nil), raw[:maxCount]...)
	if len(points) == 0 {
		points = []board.Point{{X: b.Width() / 2, Y: b.Height() / 2}}
	}

	return &Manager{
		board:  b,
		points: points,
		radius: clearRadius,
	}
}

// Points returns the effective, capped spawn list.
func (m *Manager) Points() []board.Point {
	out := make([]board.Point, len(m.points))
	copy(out, m.points)
	return out
}

// IsAvailable reports whether every in-board cell within Manhattan
// distance radius of p is non-wall and unoccupied by any position in
// occupied. Out-of-board cells inside the disk count as blocking.
func (m *Manager) IsAvailable(p board.Point, occupied map[board.Point]struct{}) bool {
	r := m.radius
	for dx := -r; dx <= r; dx++ {
		remaining := r - abs(dx)
		for dy := -remaining; dy <= remaining; dy++ {
			x, y := p.X+dx, p.Y+dy
			if !m.board.InBounds(x, y) {
				return false
			}
			if m.board.IsWall(x, y) {
				return false
			}
			if _, taken := occupied[board.Point{X: x, Y: y}]; taken {
				return false
			}
		}
	}
	return true
}

// FindSpawn returns the first point in the ordered spawn list that is
// available given occupied, or false if none are.
func (m *Manager) FindSpawn(occupied map[board.Point]struct{}) (board.Point, bool) {
	for _, p := range m.points {
		if m.IsAvailable(p, occupied) {
			return p, true
		}
	}
	return board.Point{}, false
}

// EnqueueWait appends playerID to the FIFO wait queue.
func (m *Manager) EnqueueWait(playerID string) {
	m.wait = append(m.wait, playerID)
}

// DequeueNextWaiting pops the oldest queued playerID, if any.
func (m *Manager) DequeueNextWaiting() (string, bool) {
	if len(m.wait) == 0 {
		return "", false
	}
	next := m.wait[0]
	m.wait = m.wait[1:]
	return next, true
}

// WaitQueueLen reports how many players are currently deferred.
func (m *Manager) WaitQueueLen() int {
	return len(m.wait)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
