package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/scythe504/rps-backend/internal"
)

// MemoryService keeps games in a map. It is meant for development and tests;
// everything is lost on restart.
type MemoryService struct {
	mu     sync.RWMutex
	games  map[string]internal.Game
	closed bool
}

func NewMemory() *MemoryService {
	return &MemoryService{games: make(map[string]internal.Game)}
}

func (m *MemoryService) Health() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return map[string]string{"status": "down", "error": "db down: store closed"}
	}
	return map[string]string{
		"status":  "up",
		"message": "It's healthy",
		"games":   strconv.Itoa(len(m.games)),
	}
}

func (m *MemoryService) CreateGame(_ context.Context, game *internal.Game) error {
	if err := validateStatus(game.Status); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errStoreClosed
	}
	if _, exists := m.games[game.ID]; exists {
		return fmt.Errorf("create game %s: %w", game.ID, ErrGameExists)
	}
	stored := *game
	stored.Player2IP = nil
	m.games[game.ID] = stored
	return nil
}

func (m *MemoryService) GetGame(_ context.Context, id string) (*internal.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errStoreClosed
	}
	game, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	if game.Player2IP != nil {
		ip := *game.Player2IP
		game.Player2IP = &ip
	}
	return &game, nil
}

func (m *MemoryService) update(id string, fn func(*internal.Game)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errStoreClosed
	}
	game, ok := m.games[id]
	if !ok {
		return ErrGameNotFound
	}
	fn(&game)
	m.games[id] = game
	return nil
}

func (m *MemoryService) SetStatus(_ context.Context, id string, status internal.GameStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	return m.update(id, func(g *internal.Game) { g.Status = status })
}

func (m *MemoryService) SetActive(_ context.Context, id string, player2IP string) error {
	return m.update(id, func(g *internal.Game) {
		g.Status = internal.StatusActive
		g.Player2IP = &player2IP
	})
}

func (m *MemoryService) ResetToWaiting(_ context.Context, id string) error {
	return m.update(id, func(g *internal.Game) {
		g.Status = internal.StatusWaiting
		g.Player2IP = nil
	})
}

func (m *MemoryService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var errStoreClosed = errors.New("memory store closed")
