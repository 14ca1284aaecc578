package gamestate_test

import (
	"testing"
	"time"

	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/gamestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestAddPlayerStartsWaiting(t *testing.T) {
	b := board.New(10, 10, emptyGrid(10, 10), nil)
	gs := gamestate.New(b)

	p := gs.AddPlayer("p1", "Alice", "c1")
	assert.Equal(t, gamestate.StateWaiting, p.State)
	assert.False(t, p.HasPos)
}

func TestPlacePlayerActivates(t *testing.T) {
	b := board.New(10, 10, emptyGrid(10, 10), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")

	ok := gs.PlacePlayer("p1", 2, 3)
	require.True(t, ok)

	p, ok := gs.Player("p1")
	require.True(t, ok)
	assert.Equal(t, gamestate.StateActive, p.State)
	assert.Equal(t, 2, p.X)
	assert.Equal(t, 3, p.Y)
	assert.True(t, p.HasPos)
}

func TestMovePlayerBoundsBeforeWall(t *testing.T) {
	grid := emptyGrid(5, 5)
	b := board.New(5, 5, grid, nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 0, 0)

	res := gs.MovePlayer("p1", -1, 0, 1)
	assert.False(t, res.Ok)
	assert.Equal(t, gamestate.ReasonBounds, res.Reason)
}

func TestMovePlayerWallBlocks(t *testing.T) {
	grid := emptyGrid(5, 5)
	grid[2][3] = '#'
	b := board.New(5, 5, grid, nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 2, 2)

	res := gs.MovePlayer("p1", 1, 0, 1)
	assert.False(t, res.Ok)
	assert.Equal(t, gamestate.ReasonWall, res.Reason)
}

func TestMovePlayerEntityCollision(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.SetEntities([]gamestate.Entity{{EntityID: "e1", X: 3, Y: 2, Solid: true}})
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 2, 2)

	res := gs.MovePlayer("p1", 1, 0, 1)
	assert.False(t, res.Ok)
	assert.Equal(t, gamestate.ReasonEntity, res.Reason)
}

func TestMovePlayerAnotherPlayerBlocks(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 2, 2)
	gs.AddPlayer("p2", "Bob", "c2")
	gs.PlacePlayer("p2", 3, 2)

	res := gs.MovePlayer("p1", 1, 0, 1)
	assert.False(t, res.Ok)
	assert.Equal(t, gamestate.ReasonPlayer, res.Reason)
}

func TestMovePlayerSucceedsAndUpdatesLastPosition(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 2, 2)

	res := gs.MovePlayer("p1", 1, 1, 1)
	require.True(t, res.Ok)

	p, ok := gs.Player("p1")
	require.True(t, ok)
	assert.Equal(t, 3, p.X)
	assert.Equal(t, 3, p.Y)
	assert.Equal(t, 2, p.LastX)
	assert.Equal(t, 2, p.LastY)
}

func TestNoTwoActivePlayersShareACell(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)
	gs.AddPlayer("p2", "Bob", "c2")
	gs.PlacePlayer("p2", 1, 2)

	res := gs.MovePlayer("p2", 0, -1, 1)
	assert.False(t, res.Ok)

	positions := gs.ActivePositions()
	assert.Len(t, positions, 2)
}

func TestRebindClientPreservesPlayerIDAcrossReconnect(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)
	gs.SetGrace("p1")

	ok := gs.RebindClient("p1", "c2")
	require.True(t, ok)

	p, ok := gs.Player("p1")
	require.True(t, ok)
	assert.Equal(t, "c2", p.ClientID)
	assert.Equal(t, gamestate.StateActive, p.State)
	assert.Equal(t, 1, p.X)
	assert.Equal(t, 1, p.Y)
}

func TestRemovePlayerDropsFromActivePositions(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)

	gs.RemovePlayer("p1")
	_, ok := gs.Player("p1")
	assert.False(t, ok)
	assert.Empty(t, gs.ActivePositions())
}

func TestMoveOnUnknownPlayerFails(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	res := gs.MovePlayer("ghost", 1, 0, 1)
	assert.False(t, res.Ok)
}

func TestMoveOnWaitingPlayerFails(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")

	res := gs.MovePlayer("p1", 1, 0, 1)
	assert.False(t, res.Ok)
}

func TestSerializeOmitsWaitingPlayers(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)
	gs.AddPlayer("p2", "Bob", "c2")

	snap := gs.Serialize(time.Now())
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "p1", snap.Players[0].PlayerID)
}

func TestSerializeFirstSnapshotHasZeroVelocity(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)

	snap := gs.Serialize(time.Now())
	require.Len(t, snap.Players, 1)
	assert.Equal(t, 0.0, snap.Players[0].Vx)
	assert.Equal(t, 0.0, snap.Players[0].Vy)
}

func TestSerializeDerivesVelocityFromLastMove(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)

	res := gs.MovePlayer("p1", 1, 0, 1)
	require.True(t, res.Ok)

	snap := gs.Serialize(time.Now().Add(500 * time.Millisecond))
	require.Len(t, snap.Players, 1)
	assert.InDelta(t, 2.0, snap.Players[0].Vx, 0.01)
	assert.Equal(t, 0.0, snap.Players[0].Vy)
}

func TestRenamePlayerUpdatesDisplayName(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")

	require.True(t, gs.RenamePlayer("p1", "Alicia"))
	p, ok := gs.Player("p1")
	require.True(t, ok)
	assert.Equal(t, "Alicia", p.PlayerName)

	assert.False(t, gs.RenamePlayer("ghost", "x"))
}

func TestSerializeReflectsLastAckedSeq(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.AddPlayer("p1", "Alice", "c1")
	gs.PlacePlayer("p1", 1, 1)

	gs.MovePlayer("p1", 1, 0, 5)
	gs.MovePlayer("p1", 0, 1, 6)

	snap := gs.Serialize(time.Now())
	require.Len(t, snap.Players, 1)
	assert.Equal(t, uint64(6), snap.Players[0].AckedSeq)
}

func TestSerializeIncludesEntitiesAndScore(t *testing.T) {
	b := board.New(5, 5, emptyGrid(5, 5), nil)
	gs := gamestate.New(b)
	gs.SetEntities([]gamestate.Entity{{EntityID: "e1", X: 2, Y: 2, Glyph: "$", Solid: true}})
	gs.AddScore(7)

	snap := gs.Serialize(time.Now())
	require.Len(t, snap.Entities, 1)
	assert.Equal(t, "e1", snap.Entities[0].EntityID)
	assert.Equal(t, 7, snap.Score)
}
