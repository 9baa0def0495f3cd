package game

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

// =============================================================================
// SESSION REGISTRY
// =============================================================================

// Registry maps game ids to live rooms. At most one Room exists per id at a
// time. Lock order is room then registry: implementations must never take a
// room lock.
type Registry interface {
	// GetOrCreate returns the room for id, creating it on first use.
	// Concurrent callers for the same id observe the same Room.
	GetOrCreate(id string) *internal.Room
	Get(id string) *internal.Room
	// Evict removes room when it is empty and still registered under its id,
	// and marks it closed. The caller must hold room.Mu.
	Evict(room *internal.Room) bool
	Len() int
	Rooms() []*internal.Room
}

type MemoryRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*internal.Room
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{rooms: make(map[string]*internal.Room)}
}

func (r *MemoryRegistry) GetOrCreate(id string) *internal.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, exists := r.rooms[id]; exists {
		return room
	}

	room := internal.NewRoom(id)
	r.rooms[id] = room
	log.Debug().Str("room_id", id).Int("live_rooms", len(r.rooms)).Msg("[GetOrCreate] Created room")
	return room
}

func (r *MemoryRegistry) Get(id string) *internal.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[id]
}

func (r *MemoryRegistry) Evict(room *internal.Room) bool {
	if room.GetPlayerCount() > 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[room.Id] != room {
		return false
	}
	delete(r.rooms, room.Id)
	room.Closed = true
	log.Debug().Str("room_id", room.Id).Int("live_rooms", len(r.rooms)).Msg("[Evict] Removed room")
	return true
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Rooms returns a snapshot of the live rooms in no particular order.
func (r *MemoryRegistry) Rooms() []*internal.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*internal.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
