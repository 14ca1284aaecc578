package clientloop_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullterm/gridwars/clientloop"
	"github.com/nullterm/gridwars/netclient"
	"github.com/nullterm/gridwars/protocol"
)

type fakeInput struct {
	queued []struct{ dx, dy int }
}

func (f *fakeInput) Poll() (int, int, bool) {
	if len(f.queued) == 0 {
		return 0, 0, false
	}
	next := f.queued[0]
	f.queued = f.queued[1:]
	return next.dx, next.dy, true
}

type fakeRenderer struct {
	states []clientloop.RenderState
}

func (f *fakeRenderer) Render(s clientloop.RenderState) error {
	f.states = append(f.states, s)
	return nil
}

func mustEncode(t *testing.T, ty protocol.Type, payload interface{}) protocol.Message {
	t.Helper()
	msg, err := protocol.Encode(ty, protocol.NowMillis(), "", payload)
	require.NoError(t, err)
	return msg
}

func TestHandleMessageConnectSeedsLocalPlayer(t *testing.T) {
	input := &fakeInput{}
	rend := &fakeRenderer{}
	loop := clientloop.New(&netclient.Client{}, input, rend, clientloop.Options{RemoteBufferMax: 5})

	gameState := protocol.StatePayload{
		Board:   protocol.BoardView{Width: 5, Height: 5, Grid: gridOf(5, 5)},
		Players: []protocol.PlayerView{{PlayerID: "p1", X: 2, Y: 2}},
	}
	loop.HandleMessage(mustEncode(t, protocol.TypeConnect, protocol.ConnectServerPayload{
		ClientID:  "c1",
		PlayerID:  "p1",
		GameState: &gameState,
	}))

	assert.Equal(t, "p1", loop.LocalPlayerID())
}

func TestTickRendersLocalAndRemotePositions(t *testing.T) {
	input := &fakeInput{}
	rend := &fakeRenderer{}
	loop := clientloop.New(&netclient.Client{}, input, rend, clientloop.Options{RemoteBufferMax: 5})

	gameState := protocol.StatePayload{
		Board: protocol.BoardView{Width: 5, Height: 5, Grid: gridOf(5, 5)},
		Players: []protocol.PlayerView{
			{PlayerID: "p1", X: 2, Y: 2},
			{PlayerID: "p2", PlayerName: "Bob", X: 4, Y: 4},
		},
	}
	loop.HandleMessage(mustEncode(t, protocol.TypeConnect, protocol.ConnectServerPayload{
		ClientID:  "c1",
		PlayerID:  "p1",
		GameState: &gameState,
	}))

	require.NoError(t, loop.Tick(time.Now()))
	require.Len(t, rend.states, 1)
	state := rend.states[0]
	require.True(t, state.LocalHasPos)
	assert.Equal(t, 2.0, state.LocalX)
	require.Len(t, state.Remotes, 1)
	assert.Equal(t, "p2", state.Remotes[0].PlayerID)
}

func TestPlayerLeftForgetsRemote(t *testing.T) {
	input := &fakeInput{}
	rend := &fakeRenderer{}
	loop := clientloop.New(&netclient.Client{}, input, rend, clientloop.Options{RemoteBufferMax: 5})

	gameState := protocol.StatePayload{
		Board: protocol.BoardView{Width: 5, Height: 5, Grid: gridOf(5, 5)},
		Players: []protocol.PlayerView{
			{PlayerID: "p1", X: 0, Y: 0},
			{PlayerID: "p2", X: 1, Y: 1},
		},
	}
	loop.HandleMessage(mustEncode(t, protocol.TypeConnect, protocol.ConnectServerPayload{
		ClientID: "c1", PlayerID: "p1", GameState: &gameState,
	}))
	loop.HandleMessage(mustEncode(t, protocol.TypePlayerLeft, protocol.PlayerLeftPayload{PlayerID: "p2"}))

	require.NoError(t, loop.Tick(time.Now()))
	require.Len(t, rend.states, 1)
	assert.Empty(t, rend.states[0].Remotes)
}

func TestReconcileReplaysInputsNotYetAckedByServer(t *testing.T) {
	input := &fakeInput{queued: []struct{ dx, dy int }{{1, 0}, {1, 0}}}
	rend := &fakeRenderer{}
	loop := clientloop.New(&netclient.Client{}, input, rend, clientloop.Options{RemoteBufferMax: 5})

	gameState := protocol.StatePayload{
		Board:   protocol.BoardView{Width: 10, Height: 10, Grid: gridOf(10, 10)},
		Players: []protocol.PlayerView{{PlayerID: "p1", X: 2, Y: 2}},
	}
	loop.HandleMessage(mustEncode(t, protocol.TypeConnect, protocol.ConnectServerPayload{
		ClientID: "c1", PlayerID: "p1", GameState: &gameState,
	}))

	require.NoError(t, loop.Tick(time.Now()))
	require.NoError(t, loop.Tick(time.Now()))
	require.Len(t, rend.states, 2)
	assert.Equal(t, 4.0, rend.states[1].LocalX)

	// The server has only processed the first of the two local moves
	// (AckedSeq: 1) — the second is still in flight and must survive
	// reconciliation instead of being discarded.
	loop.HandleMessage(mustEncode(t, protocol.TypeStateUpdate, protocol.StatePayload{
		Players: []protocol.PlayerView{{PlayerID: "p1", X: 3, Y: 2, AckedSeq: 1}},
	}))

	require.NoError(t, loop.Tick(time.Now()))
	require.Len(t, rend.states, 3)
	assert.Equal(t, 4.0, rend.states[2].LocalX)
}

func gridOf(w, h int) [][]string {
	rows := make([][]string, h)
	for y := range rows {
		row := make([]string, w)
		for x := range row {
			row[x] = " "
		}
		rows[y] = row
	}
	return rows
}
