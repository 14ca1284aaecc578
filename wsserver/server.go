// Package wsserver is the HTTP/WebSocket front door: it accepts
// sockets, spawns one ConnectionActor per socket, and exposes the
// status and health HTTP endpoints, in the shape the teacher's
// server package establishes.
package wsserver

import (
	"time"

	"github.com/nullterm/gridwars/actor"
	"github.com/nullterm/gridwars/connection"
)

// Server holds the references every handler needs.
type Server struct {
	Engine    *actor.Engine
	WorldPID  *actor.PID
	Conns     *connection.Manager
	AskTimeout time.Duration
}

// New builds a Server. askTimeout bounds how long HandleGetStatus and
// each connection's Ask(world, Join{...}) will wait.
func New(engine *actor.Engine, worldPID *actor.PID, conns *connection.Manager, askTimeout time.Duration) *Server {
	if askTimeout <= 0 {
		askTimeout = 2 * time.Second
	}
	return &Server{Engine: engine, WorldPID: worldPID, Conns: conns, AskTimeout: askTimeout}
}
