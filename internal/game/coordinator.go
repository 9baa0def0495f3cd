package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

var (
	ErrInvalidGameID = errors.New("invalid game id")
	ErrGameNotFound  = errors.New("game not found")
	ErrGameEnded     = errors.New("game ended")
	ErrRoomFull      = errors.New("room full")
	ErrShuttingDown  = errors.New("server shutting down")
)

// Close codes and reasons sent on rejection and shutdown.
const (
	CloseInvalidPath = websocket.ClosePolicyViolation
	CloseNotFound    = websocket.CloseInternalServerErr
	CloseGameFull    = websocket.ClosePolicyViolation
	CloseGameEnded   = websocket.ClosePolicyViolation
	CloseNormal      = websocket.CloseNormalClosure
	CloseRestart     = websocket.CloseServiceRestart

	ReasonInvalidPath = "Invalid connection path"
	ReasonNotFound    = "Game not found"
	ReasonGameFull    = "Game full"
	ReasonGameEnded   = "Game ended"
	ReasonRestart     = "Server is restarting"
)

// Directory is the part of the durable store the live protocol uses.
type Directory interface {
	GetGame(ctx context.Context, id string) (*internal.Game, error)
	SetStatus(ctx context.Context, id string, status internal.GameStatus) error
	SetActive(ctx context.Context, id string, player2IP string) error
	ResetToWaiting(ctx context.Context, id string) error
}

type Options struct {
	// NextRoundDelay is the pause between a result and the next-round prompt.
	NextRoundDelay time.Duration
	// LookupTimeout bounds the directory lookup made on join.
	LookupTimeout time.Duration
	// WriteTimeout bounds each queued durable update.
	WriteTimeout time.Duration
	// QueueSize is the capacity of the durable update queue.
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.NextRoundDelay <= 0 {
		o.NextRoundDelay = internal.NextRoundDelay
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	return o
}

// Session is one accepted connection: the player it became and the room it
// joined.
type Session struct {
	GameID string
	Player *internal.Player
	Room   *internal.Room

	leaveOnce sync.Once
}

// Coordinator runs the join, round and disconnect protocols for every live
// connection.
type Coordinator struct {
	registry  Registry
	directory Directory
	writer    *statusWriter
	opts      Options

	mu       sync.Mutex
	closing  bool
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

func NewCoordinator(registry Registry, directory Directory, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		registry:  registry,
		directory: directory,
		writer:    newStatusWriter(directory, opts.QueueSize, opts.WriteTimeout),
		opts:      opts,
		sessions:  make(map[*Session]struct{}),
	}
}

func (c *Coordinator) Registry() Registry {
	return c.registry
}

// Serve runs one connection to completion: join, then the receive loop, then
// the disconnect protocol. It returns once the connection is gone.
func (c *Coordinator) Serve(ctx context.Context, gameID string, conn internal.Transport) {
	if !c.acquire() {
		log.Info().Str("remote_addr", conn.RemoteAddr()).Msg("[Serve] Refusing connection during shutdown")
		_ = conn.Close(CloseRestart, ReasonRestart)
		return
	}
	defer c.wg.Done()

	s, err := c.Join(ctx, gameID, conn)
	if err != nil {
		log.Info().Err(err).Str("room_id", gameID).Str("remote_addr", conn.RemoteAddr()).Msg("[Serve] Join rejected")
		return
	}
	c.track(s)
	defer c.untrack(s)
	defer c.Leave(s)

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("room_id", s.GameID).Str("player_id", s.Player.Id).Msg("[Serve] Receive loop ended")
			return
		}
		c.HandleMessage(s, raw)
	}
}

func (c *Coordinator) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *Coordinator) track(s *Session) {
	c.mu.Lock()
	closing := c.closing
	if !closing {
		c.sessions[s] = struct{}{}
	}
	c.mu.Unlock()

	if closing {
		_ = s.Player.SafeClose(CloseRestart, ReasonRestart)
	}
}

func (c *Coordinator) untrack(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s)
	c.mu.Unlock()
}

// Shutdown closes every live connection with a restart code, waits for their
// cleanup and drains the durable update queue. The directory may be closed
// once Shutdown returns.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	live := make([]*Session, 0, len(c.sessions))
	for s := range c.sessions {
		live = append(live, s)
	}
	c.mu.Unlock()

	log.Info().Int("connections", len(live)).Msg("[Shutdown] Closing live connections")
	for _, s := range live {
		if err := s.Player.SafeClose(CloseRestart, ReasonRestart); err != nil {
			log.Debug().Err(err).Str("player_id", s.Player.Id).Msg("[Shutdown] Close failed")
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
		log.Warn().Err(waitErr).Msg("[Shutdown] Timed out waiting for connection cleanup")
	}

	if err := c.writer.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("[Shutdown] Durable update queue not drained")
		return err
	}
	return waitErr
}

// PlayerCount returns the live participant count for id, or 0.
func (c *Coordinator) PlayerCount(id string) int {
	room := c.registry.Get(id)
	if room == nil {
		return 0
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	return room.GetPlayerCount()
}

func (c *Coordinator) Stats() internal.RoomStats {
	var stats internal.RoomStats
	for _, room := range c.registry.Rooms() {
		room.Mu.Lock()
		n := room.GetPlayerCount()
		room.Mu.Unlock()

		stats.Rooms++
		stats.Players += n
		if n >= internal.MinPlayersToPlay {
			stats.Playing++
		} else {
			stats.Waiting++
		}
	}
	return stats
}
