package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/scythe504/rps-backend/internal"
	"github.com/scythe504/rps-backend/internal/config"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists")
)

// Service is the durable room directory. The live protocol only mirrors its
// state here; in-memory rooms stay the source of truth while players are
// connected.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	CreateGame(ctx context.Context, game *internal.Game) error
	GetGame(ctx context.Context, id string) (*internal.Game, error)

	// SetStatus changes only the status column.
	SetStatus(ctx context.Context, id string, status internal.GameStatus) error
	// SetActive marks the game active and records the second player.
	SetActive(ctx context.Context, id string, player2IP string) error
	// ResetToWaiting marks the game waiting and clears the second player.
	ResetToWaiting(ctx context.Context, id string) error

	Close() error
}

const createGamesTable = `CREATE TABLE IF NOT EXISTS games (
	game_id    TEXT PRIMARY KEY NOT NULL,
	player1_ip TEXT,
	player2_ip TEXT,
	created_at %s NOT NULL,
	status     TEXT NOT NULL DEFAULT 'waiting'
)`

// New opens the backend selected by cfg.Driver and makes sure the schema exists.
func New(ctx context.Context, cfg config.Database) (Service, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg)
	case "sqlite":
		return NewSQLite(ctx, cfg.SQLitePath)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func validateStatus(status internal.GameStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid game status %q", status)
	}
	return nil
}
