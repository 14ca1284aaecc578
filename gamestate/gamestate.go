package gamestate

import (
	"sync"
	"time"

	"github.com/nullterm/gridwars/board"
	"github.com/nullterm/gridwars/protocol"
)

// MoveReason tags why a movePlayer call failed.
type MoveReason string

const (
	ReasonBounds MoveReason = "bounds"
	ReasonWall   MoveReason = "wall"
	ReasonEntity MoveReason = "entity"
	ReasonPlayer MoveReason = "player"
)

// MoveResult is movePlayer's result-typed outcome: either Ok, or a
// tagged failure carrying the reason and the positions involved.
type MoveResult struct {
	Ok                bool
	Reason            MoveReason
	AttemptedX, AttemptedY int
	CurrentX, CurrentY     int
}

// GameState holds players keyed by playerID, score, and the optional
// entities collection movePlayer's collision check consults.
type GameState struct {
	mu       sync.RWMutex
	board    *board.Board
	players  map[string]*Player
	entities []Entity
	score    int
}

// New creates an empty GameState over the given immutable board.
func New(b *board.Board) *GameState {
	return &GameState{
		board:   b,
		players: make(map[string]*Player),
	}
}

// SetEntities replaces the entities collection movePlayer checks
// against. The core ships with this empty; kept for forward-compat
// with spec.md §9's noted "entities with a solid flag" pattern.
func (gs *GameState) SetEntities(entities []Entity) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.entities = entities
}

// AddPlayer creates a player in the waiting state.
func (gs *GameState) AddPlayer(playerID, playerName, clientID string) *Player {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p := &Player{
		PlayerID:   playerID,
		PlayerName: playerName,
		ClientID:   clientID,
		State:      StateWaiting,
	}
	gs.players[playerID] = p
	return p
}

// Player returns a copy of the player's current state, for callers
// outside the single-writer boundary (e.g. tests, reconciliation).
func (gs *GameState) Player(playerID string) (Player, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	p, ok := gs.players[playerID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// RebindClient updates a player's clientId without touching position,
// for the reconnect path (spec.md §4.5).
func (gs *GameState) RebindClient(playerID, clientID string) bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.players[playerID]
	if !ok {
		return false
	}
	p.ClientID = clientID
	if p.State == StateDisconnectedGrace {
		p.State = StateActive
	}
	return true
}

// RenamePlayer updates a player's display name.
func (gs *GameState) RenamePlayer(playerID, name string) bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.players[playerID]
	if !ok {
		return false
	}
	p.PlayerName = name
	return true
}

// PlacePlayer sets position, activates the player, and stamps
// lastMovedAt for velocity derivation.
func (gs *GameState) PlacePlayer(playerID string, x, y int) bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.players[playerID]
	if !ok {
		return false
	}
	p.X, p.Y = x, y
	p.HasPos = true
	p.LastX, p.LastY = x, y
	p.LastMovedAt = time.Now()
	p.State = StateActive
	return true
}

// ActivePositions returns the set of cells occupied by active
// players, the "occupied" input SpawnManager's operations take.
func (gs *GameState) ActivePositions() map[board.Point]struct{} {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	out := make(map[board.Point]struct{}, len(gs.players))
	for _, p := range gs.players {
		if p.State == StateActive && p.HasPos {
			out[board.Point{X: p.X, Y: p.Y}] = struct{}{}
		}
	}
	return out
}

// MovePlayer validates and applies a single-cell move, in the order
// spec.md §4.4 fixes so client-side prediction mirrors it exactly:
// bounds, wall, entity collision, player collision. seq is the
// client's MovePayload.Seq for this move, recorded regardless of
// outcome so the player's next Serialize echoes it back as AckedSeq —
// the client needs to know this input was processed even when it was
// rejected, or its pending-input replay would stall forever on it.
func (gs *GameState) MovePlayer(playerID string, dx, dy int, seq uint64) MoveResult {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	p, ok := gs.players[playerID]
	if !ok || p.State != StateActive {
		return MoveResult{Ok: false, Reason: ReasonBounds}
	}
	p.LastAckedSeq = seq

	newX, newY := p.X+dx, p.Y+dy
	result := gs.validateMove(playerID, p.X, p.Y, newX, newY)
	if !result.Ok {
		return result
	}

	p.LastX, p.LastY = p.X, p.Y
	p.LastMovedAt = time.Now()
	p.X, p.Y = newX, newY
	return result
}

// validateMove runs the four checks without mutating state, delegating
// to ValidateMove so the server and Predictor share one implementation.
func (gs *GameState) validateMove(playerID string, curX, curY, newX, newY int) MoveResult {
	occupied := make(map[board.Point]struct{}, len(gs.players))
	for id, other := range gs.players {
		if id == playerID || other.State != StateActive || !other.HasPos {
			continue
		}
		occupied[board.Point{X: other.X, Y: other.Y}] = struct{}{}
	}
	return ValidateMove(gs.board, gs.entities, occupied, curX, curY, newX, newY)
}

// ValidateMove is the move-legality check spec.md §4.4 fixes in this
// order — bounds, wall, entity collision, player collision — exported
// so client-side prediction runs the identical logic against its own
// locally known occupied set.
func ValidateMove(b *board.Board, entities []Entity, occupied map[board.Point]struct{}, curX, curY, newX, newY int) MoveResult {
	base := MoveResult{AttemptedX: newX, AttemptedY: newY, CurrentX: curX, CurrentY: curY}

	if !b.InBounds(newX, newY) {
		base.Reason = ReasonBounds
		return base
	}
	if b.IsWall(newX, newY) {
		base.Reason = ReasonWall
		return base
	}
	for _, e := range entities {
		if e.Solid && e.X == newX && e.Y == newY {
			base.Reason = ReasonEntity
			return base
		}
	}
	if _, taken := occupied[board.Point{X: newX, Y: newY}]; taken {
		base.Reason = ReasonPlayer
		return base
	}

	base.Ok = true
	return base
}

// RemovePlayer deletes the player entirely.
func (gs *GameState) RemovePlayer(playerID string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	delete(gs.players, playerID)
}

// SetGrace marks a player disconnected-grace without removing them,
// so a reconnect within the grace window rebinds instead of respawning.
func (gs *GameState) SetGrace(playerID string) bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.players[playerID]
	if !ok {
		return false
	}
	p.State = StateDisconnectedGrace
	return true
}

// Score returns the current shared score.
func (gs *GameState) Score() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.score
}

// AddScore adjusts the shared score by delta.
func (gs *GameState) AddScore(delta int) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.score += delta
}

// Board returns the immutable board GameState validates against.
func (gs *GameState) Board() *board.Board { return gs.board }

// Serialize builds the STATE_UPDATE payload: an authoritative,
// self-contained copy of board, players, entities and score. Velocity
// is derived per spec.md §6 from the last move's displacement over
// elapsed wall time, and is zero until a player has moved at least once.
func (gs *GameState) Serialize(now time.Time) protocol.StatePayload {
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	boardSnap := gs.board.Serialize()

	players := make([]protocol.PlayerView, 0, len(gs.players))
	for _, p := range gs.players {
		if p.State == StateWaiting || !p.HasPos {
			continue
		}
		vx, vy := 0.0, 0.0
		if !p.LastMovedAt.IsZero() {
			dt := now.Sub(p.LastMovedAt).Seconds()
			if dt > 0 {
				vx = float64(p.X-p.LastX) / dt
				vy = float64(p.Y-p.LastY) / dt
			}
		}
		players = append(players, protocol.PlayerView{
			PlayerID:   p.PlayerID,
			PlayerName: p.PlayerName,
			ClientID:   p.ClientID,
			X:          p.X,
			Y:          p.Y,
			Vx:         vx,
			Vy:         vy,
			AckedSeq:   p.LastAckedSeq,
		})
	}

	entities := make([]protocol.EntityView, 0, len(gs.entities))
	for _, e := range gs.entities {
		entities = append(entities, protocol.EntityView{
			EntityID:   e.EntityID,
			X:          e.X,
			Y:          e.Y,
			Glyph:      e.Glyph,
			Color:      e.Color,
			Solid:      e.Solid,
			ZOrder:     e.ZOrder,
			EntityType: e.EntityType,
		})
	}

	return protocol.StatePayload{
		Board: protocol.BoardView{
			Width:  boardSnap.Width,
			Height: boardSnap.Height,
			Grid:   boardSnap.Grid,
		},
		Players:  players,
		Entities: entities,
		Score:    gs.score,
	}
}
