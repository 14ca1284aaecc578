package netclient_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/nullterm/gridwars/netclient"
	"github.com/nullterm/gridwars/protocol"
)

// echoConnectServer replies to CONNECT with a fixed playerId, then
// echoes anything else it receives back verbatim.
func echoConnectServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := websocket.Handler(func(ws *websocket.Conn) {
		for {
			var raw []byte
			if err := websocket.Message.Receive(ws, &raw); err != nil {
				return
			}
			msg, err := protocol.Decode(raw)
			require.NoError(t, err)

			if msg.Type == protocol.TypeConnect {
				reply, err := protocol.Encode(protocol.TypeConnect, 0, "", protocol.ConnectServerPayload{
					ClientID: "server-client-1",
					PlayerID: "player-1",
				})
				require.NoError(t, err)
				out, err := json.Marshal(reply)
				require.NoError(t, err)
				require.NoError(t, websocket.Message.Send(ws, out))
				continue
			}

			require.NoError(t, websocket.Message.Send(ws, raw))
		}
	})
	return httptest.NewServer(handler)
}

func TestRunReceivesPlayerIDFromConnect(t *testing.T) {
	server := echoConnectServer(t)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	got := make(chan protocol.Message, 4)

	c := netclient.New(netclient.Options{
		URL:        wsURL,
		Origin:     server.URL,
		PlayerName: "Alice",
	}, netclient.Callbacks{
		OnMessage: func(msg protocol.Message) { got <- msg },
	})
	defer c.Close()

	go c.Run()

	select {
	case msg := <-got:
		assert.Equal(t, protocol.TypeConnect, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for CONNECT reply")
	}

	require.Eventually(t, func() bool {
		return c.PlayerID() == "player-1"
	}, time.Second, 10*time.Millisecond)
}

func TestSendEchoesBackThroughOnMessage(t *testing.T) {
	server := echoConnectServer(t)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	got := make(chan protocol.Message, 4)

	c := netclient.New(netclient.Options{
		URL:        wsURL,
		Origin:     server.URL,
		PlayerName: "Alice",
	}, netclient.Callbacks{
		OnMessage: func(msg protocol.Message) { got <- msg },
	})
	defer c.Close()

	go c.Run()

	// Drain the CONNECT reply first.
	<-got

	require.NoError(t, c.Send(protocol.TypeMove, protocol.MovePayload{Dx: 1, Dy: 0}))

	select {
	case msg := <-got:
		assert.Equal(t, protocol.TypeMove, msg.Type)
		var payload protocol.MovePayload
		require.NoError(t, protocol.DecodePayload(msg, &payload))
		assert.Equal(t, 1, payload.Dx)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echoed move")
	}
}
