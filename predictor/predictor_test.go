package predictor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/gamestate"
	"github.com/nullterm/gridwars/predictor"
)

func emptyGrid(w, h int) [][]rune {
	rows := make([][]rune, h)
	for y := range rows {
		row := make([]rune, w)
		for x := range row {
			row[x] = ' '
		}
		rows[y] = row
	}
	return rows
}

func TestApplyInputMovesOnSuccess(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	p := predictor.New(b)
	p.SetAuthoritative(2, 2)

	seq, result := p.ApplyInput(1, 0, nil, nil)
	require.True(t, result.Ok)
	assert.Equal(t, uint64(1), seq)

	x, y, has := p.Position()
	require.True(t, has)
	assert.Equal(t, 3, x)
	assert.Equal(t, 2, y)
	assert.Equal(t, 1, p.PendingCount())
}

func TestApplyInputRejectsWallIdenticallyToServer(t *testing.T) {
	grid := emptyGrid(5, 5)
	grid[2][3] = '#'
	b := board.New(5, 5, grid, nil)
	p := predictor.New(b)
	p.SetAuthoritative(2, 2)

	_, result := p.ApplyInput(1, 0, nil, nil)
	assert.False(t, result.Ok)
	assert.Equal(t, gamestate.ReasonWall, result.Reason)

	x, y, _ := p.Position()
	assert.Equal(t, 2, x)
	assert.Equal(t, 2, y)
	assert.Equal(t, 0, p.PendingCount())
}

func TestReconcileDropsAcknowledgedAndReplaysPending(t *testing.T) {
	b := board.New(10, 10, emptyGrid(10, 10), nil)
	p := predictor.New(b)
	p.SetAuthoritative(0, 0)

	seq1, _ := p.ApplyInput(1, 0, nil, nil)
	_, _ = p.ApplyInput(1, 0, nil, nil)
	require.Equal(t, 2, p.PendingCount())

	// Server acknowledges the first input at (1,0); the second is
	// still in flight and should be replayed on top.
	p.Reconcile(1, 0, seq1, nil, nil)

	x, y, _ := p.Position()
	assert.Equal(t, 2, x)
	assert.Equal(t, 0, y)
	assert.Equal(t, 1, p.PendingCount())
}

func TestReconcileDropsReplayThatWouldNowCollide(t *testing.T) {
	b := board.New(10, 10, emptyGrid(10, 10), nil)
	p := predictor.New(b)
	p.SetAuthoritative(0, 0)

	seq1, _ := p.ApplyInput(1, 0, nil, nil)

	occupiedAfter := map[board.Point]struct{}{{X: 2, Y: 0}: {}}
	_, _ = p.ApplyInput(1, 0, nil, nil)

	p.Reconcile(1, 0, seq1, occupiedAfter, nil)

	x, y, _ := p.Position()
	assert.Equal(t, 1, x)
	assert.Equal(t, 0, y)
	assert.Equal(t, 0, p.PendingCount())
}
