package world

import "github.com/nullterm/gridwars/protocol"

// Join is sent by the connection layer when a socket sends CONNECT.
// It is sent via engine.Ask, and the world replies with a JoinResult.
type Join struct {
	ClientID       string
	RequestedPlayerID string
	PlayerName     string
}

// JoinResult is WorldActor's reply to a Join Ask. GameState is the
// fresh snapshot the connection layer needs to answer CONNECT with
// spec.md §4.2's {clientId, playerId, gameState} shape immediately,
// rather than leaving the client without a board until the next
// broadcast tick. It is nil on the Waiting path, since there is no
// assigned position yet.
type JoinResult struct {
	PlayerID    string
	Resumed     bool
	Waiting     bool
	WaitMessage string
	GameState   *protocol.StatePayload
}

// SetName is sent by the connection layer when a socket sends
// SET_PLAYER_NAME.
type SetName struct {
	PlayerID string
	Name     string
}

// Move is sent by the connection layer when a socket sends MOVE. Seq
// is the client's own sequence number for this input, recorded on the
// player so Serialize can echo it back as PlayerView.AckedSeq.
type Move struct {
	PlayerID string
	Dx, Dy   int
	Seq      uint64
}

// Disconnect is sent when a socket closes. If GraceMs is 0 the player
// is removed immediately; otherwise WorldActor schedules a
// graceExpired message and the player may reconnect in the interim.
type Disconnect struct {
	PlayerID string
}

// graceExpired is WorldActor's own self-send once a disconnected
// player's grace window elapses without a resume.
type graceExpired struct {
	PlayerID string
	ClientID string
}

// StatusRequest is sent (typically via Ask) by the HTTP status handler.
type StatusRequest struct{}

// StatusResponse answers StatusRequest.
type StatusResponse struct {
	ConnectedPlayers int
	WaitingPlayers   int
	Score            int
}
