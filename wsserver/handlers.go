package wsserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/world"
)

// HandleSubscribe upgrades the request to a WebSocket and spawns a
// ConnectionActor to own it, blocking until that actor signals done.
func (s *Server) HandleSubscribe() websocket.Handler {
	return func(ws *websocket.Conn) {
		done := make(chan struct{})

		pid := s.Engine.Spawn(NewProducer(Args{
			Conn:       ws,
			Engine:     s.Engine,
			WorldPID:   s.WorldPID,
			Conns:      s.Conns,
			AskTimeout: s.AskTimeout,
			Done:       done,
		}))
		if pid == nil {
			logrus.Error("wsserver: failed to spawn connection actor, closing socket")
			_ = ws.Close()
			return
		}

		<-done
	}
}

// HandleGetStatus answers an HTTP GET with the world's aggregate
// counters, queried via engine.Ask the way the teacher's room-list
// handler queries its RoomManager.
func (s *Server) HandleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		reply, err := s.Engine.Ask(s.WorldPID, world.StatusRequest{}, s.AskTimeout)
		if err != nil {
			if errors.Is(err, actor.ErrTimeout) {
				http.Error(w, "Timeout querying game state", http.StatusGatewayTimeout)
			} else {
				http.Error(w, "Error querying game state", http.StatusInternalServerError)
			}
			return
		}

		status, ok := reply.(world.StatusResponse)
		if !ok {
			http.Error(w, "Internal server error processing reply", http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(status)
		if err != nil {
			http.Error(w, "Error generating status", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// HandleHealthCheck is a trivial liveness probe.
func HandleHealthCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
