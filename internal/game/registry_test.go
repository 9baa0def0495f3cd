package game

import (
	"sync"
	"testing"

	"github.com/scythe504/rps-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreateConcurrent(t *testing.T) {
	reg := NewMemoryRegistry()

	const callers = 50
	rooms := make([]*internal.Room, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.GetOrCreate("a1b2c3d4")
		}(i)
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, rooms[0], reg.Get("a1b2c3d4"))
	assert.Nil(t, reg.Get("ffffffff"))
}

func TestRegistryEvict(t *testing.T) {
	reg := NewMemoryRegistry()
	room := reg.GetOrCreate("a1b2c3d4")

	room.Mu.Lock()
	room.AddPlayer(internal.NewPlayer("p1", newFakeTransport("10.0.0.1"), "10.0.0.1"))
	assert.False(t, reg.Evict(room), "non-empty rooms stay")
	room.Players = room.Players[:0]
	assert.True(t, reg.Evict(room))
	assert.True(t, room.Closed)
	room.Mu.Unlock()

	assert.Zero(t, reg.Len())

	fresh := reg.GetOrCreate("a1b2c3d4")
	require.NotSame(t, room, fresh)
	assert.False(t, fresh.Closed)

	room.Mu.Lock()
	assert.False(t, reg.Evict(room), "a stale room never evicts its replacement")
	room.Mu.Unlock()
	assert.Same(t, fresh, reg.Get("a1b2c3d4"))
}

func TestRegistryRoomsSnapshot(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.GetOrCreate("00000001")
	reg.GetOrCreate("00000002")

	rooms := reg.Rooms()
	require.Len(t, rooms, 2)
	ids := []string{rooms[0].Id, rooms[1].Id}
	assert.ElementsMatch(t, []string{"00000001", "00000002"}, ids)
}
