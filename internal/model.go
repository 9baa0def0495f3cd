package internal

import (
	"fmt"
	"time"
)

const (
	MaxPlayersPerRoom = 2
	MinPlayersToPlay  = 2
	GameIDLength      = 8
	NextRoundDelay    = 100 * time.Millisecond
)

// Choice is the action a player commits to for one round.
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// Choices lists every accepted value, in rule order.
var Choices = []Choice{Rock, Paper, Scissors}

func (c Choice) Valid() bool {
	switch c {
	case Rock, Paper, Scissors:
		return true
	}
	return false
}

// ParseChoice accepts only the three lower-case choice names.
func ParseChoice(s string) (Choice, error) {
	c := Choice(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown choice %q", s)
	}
	return c, nil
}

// GameStatus mirrors the status column of the durable game record.
type GameStatus string

const (
	StatusWaiting   GameStatus = "waiting"
	StatusActive    GameStatus = "active"
	StatusFinished  GameStatus = "finished"
	StatusAbandoned GameStatus = "abandoned"
)

func (s GameStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusFinished, StatusAbandoned:
		return true
	}
	return false
}

// Ended reports whether a game can no longer be joined.
func (s GameStatus) Ended() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// Game is the durable record kept by the room directory.
type Game struct {
	ID        string     `json:"gameId"`
	Player1IP string     `json:"player1Ip,omitempty"`
	Player2IP *string    `json:"player2Ip,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Status    GameStatus `json:"status"`
}

// Response is the envelope used by the informational REST endpoints.
type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}

type CreateGameResponse struct {
	GameID string `json:"gameId"`
	Link   string `json:"link"`
}

type GameInfo struct {
	GameID      string     `json:"gameId"`
	Status      GameStatus `json:"status"`
	PlayerCount int        `json:"playerCount"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type RoomStats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
	Waiting int `json:"waiting"`
	Playing int `json:"playing"`
}
