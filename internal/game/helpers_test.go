package game

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scythe504/rps-backend/internal"
	"github.com/scythe504/rps-backend/internal/database"
	"github.com/stretchr/testify/require"
)

var errTransportClosed = errors.New("fake transport closed")

// fakeTransport records every frame written to it and feeds ReadMessage from
// an inbox until closed.
type fakeTransport struct {
	addr  string
	inbox chan []byte
	done  chan struct{}

	mu     sync.Mutex
	sent   []string
	closed bool
	code   int
	reason string
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{addr: addr, inbox: make(chan []byte, 16), done: make(chan struct{})}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case msg := <-f.inbox:
		return msg, nil
	case <-f.done:
		return nil, errTransportClosed
	}
}

func (f *fakeTransport) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errTransportClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.code = code
	f.reason = reason
	close(f.done)
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return f.addr }

func (f *fakeTransport) send(s string) { f.inbox <- []byte(s) }

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) last() string {
	msgs := f.messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) closeState() (bool, int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.code, f.reason
}

func (f *fakeTransport) count(substr string) int {
	n := 0
	for _, m := range f.messages() {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

// waitMessage blocks until a frame containing substr has been written.
func (f *fakeTransport) waitMessage(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool { return f.count(substr) > 0 }, time.Second, 2*time.Millisecond,
		"no message containing %q, got %v", substr, f.messages())
}

func (f *fakeTransport) waitClosed(t *testing.T) (int, string) {
	t.Helper()
	require.Eventually(t, func() bool {
		closed, _, _ := f.closeState()
		return closed
	}, time.Second, 2*time.Millisecond, "transport %s never closed", f.addr)
	_, code, reason := f.closeState()
	return code, reason
}

// flakyDirectory fails lookups while failGet is set.
type flakyDirectory struct {
	*database.MemoryService

	mu      sync.Mutex
	failGet bool
}

func (d *flakyDirectory) setFailGet(v bool) {
	d.mu.Lock()
	d.failGet = v
	d.mu.Unlock()
}

func (d *flakyDirectory) GetGame(ctx context.Context, id string) (*internal.Game, error) {
	d.mu.Lock()
	fail := d.failGet
	d.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return d.MemoryService.GetGame(ctx, id)
}

type harness struct {
	t     *testing.T
	coord *Coordinator
	reg   *MemoryRegistry
	dir   *flakyDirectory
	wg    sync.WaitGroup
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		reg: NewMemoryRegistry(),
		dir: &flakyDirectory{MemoryService: database.NewMemory()},
	}
	h.coord = NewCoordinator(h.reg, h.dir, Options{NextRoundDelay: 5 * time.Millisecond})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.coord.Shutdown(ctx)
		h.wg.Wait()
	})
	return h
}

func (h *harness) createGame(id string, status internal.GameStatus) {
	h.t.Helper()
	require.NoError(h.t, h.dir.CreateGame(context.Background(), &internal.Game{
		ID:        id,
		Player1IP: "10.0.0.1",
		CreatedAt: time.Now(),
		Status:    status,
	}))
}

// connect runs Serve for a new fake transport in the background.
func (h *harness) connect(gameID, addr string) *fakeTransport {
	conn := newFakeTransport(addr)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.coord.Serve(context.Background(), gameID, conn)
	}()
	return conn
}

func (h *harness) playerCount(id string) int {
	return h.coord.PlayerCount(id)
}

func (h *harness) waitStatus(id string, want internal.GameStatus) *internal.Game {
	h.t.Helper()
	var game *internal.Game
	require.Eventually(h.t, func() bool {
		g, err := h.dir.MemoryService.GetGame(context.Background(), id)
		if err != nil {
			return false
		}
		game = g
		return g.Status == want
	}, time.Second, 2*time.Millisecond, "game %s never reached %s", id, want)
	return game
}
