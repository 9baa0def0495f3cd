package internal

import (
	"errors"
	"slices"
	"sync"
	"time"
)

var ErrPlayerClosed = errors.New("player connection closed")

// PendingChoice is one player's committed choice for the current round.
type PendingChoice struct {
	PlayerID string
	Choice   Choice
}

// Room is the live state of one game. Every method below expects Mu to be
// held by the caller.
type Room struct {
	Id          string
	Players     []*Player
	Pending     []PendingChoice
	RoundNumber int
	CreatedAt   time.Time

	// Closed is set when the registry evicts the room.
	Closed bool

	Mu sync.Mutex
}

func NewRoom(id string) *Room {
	return &Room{
		Id:          id,
		Players:     make([]*Player, 0, MaxPlayersPerRoom),
		Pending:     make([]PendingChoice, 0, MaxPlayersPerRoom),
		RoundNumber: 1,
		CreatedAt:   time.Now(),
	}
}

func (r *Room) GetPlayerCount() int {
	return len(r.Players)
}

func (r *Room) IsFull() bool {
	return len(r.Players) >= MaxPlayersPerRoom
}

func (r *Room) CanPlay() bool {
	return len(r.Players) >= MinPlayersToPlay
}

// AddPlayer appends p in join order and returns the new player count.
func (r *Room) AddPlayer(p *Player) int {
	r.Players = append(r.Players, p)
	return len(r.Players)
}

// RemovePlayer drops p and any choice it made this round.
func (r *Room) RemovePlayer(p *Player) bool {
	idx := slices.Index(r.Players, p)
	if idx < 0 {
		return false
	}
	r.Players = slices.Delete(r.Players, idx, idx+1)
	r.Pending = slices.DeleteFunc(r.Pending, func(pc PendingChoice) bool {
		return pc.PlayerID == p.Id
	})
	return true
}

func (r *Room) HasPlayer(p *Player) bool {
	return slices.Contains(r.Players, p)
}

func (r *Room) GetPlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.Id == id {
			return p
		}
	}
	return nil
}

// Opponent returns the other player, or nil when p is alone.
func (r *Room) Opponent(p *Player) *Player {
	for _, other := range r.Players {
		if other != p {
			return other
		}
	}
	return nil
}

func (r *Room) HasChosen(playerID string) bool {
	return slices.ContainsFunc(r.Pending, func(pc PendingChoice) bool {
		return pc.PlayerID == playerID
	})
}

// RecordChoice stores the choice and returns the number of pending choices.
func (r *Room) RecordChoice(playerID string, c Choice) int {
	r.Pending = append(r.Pending, PendingChoice{PlayerID: playerID, Choice: c})
	return len(r.Pending)
}

// TakePending returns the pending choices in insertion order and clears them.
func (r *Room) TakePending() []PendingChoice {
	taken := r.Pending
	r.Pending = make([]PendingChoice, 0, MaxPlayersPerRoom)
	return taken
}

// PlayersSnapshot copies the player list so callers can send without the lock.
func (r *Room) PlayersSnapshot() []*Player {
	return slices.Clone(r.Players)
}
