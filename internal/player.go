package internal

import (
	"sync"
	"time"
)

// Transport is the bidirectional message channel behind one player.
// ReadMessage blocks until a text frame arrives or the connection fails.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close(code int, reason string) error
	RemoteAddr() string
}

// Player is one connection attached to a room. Id is the participant token
// issued at join time; pending choices are keyed by it.
type Player struct {
	Id       string    `json:"id"`
	Conn     Transport `json:"-"`
	Addr     string    `json:"-"`
	JoinedAt time.Time `json:"joined_at"`

	closed bool
	Mu     sync.Mutex `json:"-"`
}

func NewPlayer(id string, conn Transport, addr string) *Player {
	return &Player{
		Id:       id,
		Conn:     conn,
		Addr:     addr,
		JoinedAt: time.Now(),
	}
}

func (p *Player) SafeWriteJSON(v any) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}
	return p.Conn.WriteJSON(v)
}

// SafeClose closes the transport once; later calls are no-ops.
func (p *Player) SafeClose(code int, reason string) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.Conn.Close(code, reason)
}

func (p *Player) IsClosed() bool {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.closed
}
