package game

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// statusWrite is one durable update. op names it in logs.
type statusWrite struct {
	gameID string
	op     string
	apply  func(ctx context.Context, dir Directory) error
}

// statusWriter applies durable updates in enqueue order on one goroutine so
// the protocol never waits on the store. Failed writes are logged and dropped.
type statusWriter struct {
	dir     Directory
	queue   chan statusWrite
	timeout time.Duration
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

func newStatusWriter(dir Directory, size int, timeout time.Duration) *statusWriter {
	w := &statusWriter{
		dir:     dir,
		queue:   make(chan statusWrite, size),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *statusWriter) enqueue(write statusWrite) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		log.Warn().Str("room_id", write.gameID).Str("op", write.op).Msg("[StatusWriter] Writer closed, dropping update")
		return
	}
	select {
	case w.queue <- write:
	default:
		log.Error().Str("room_id", write.gameID).Str("op", write.op).Msg("[StatusWriter] Queue full, dropping update")
	}
}

func (w *statusWriter) run() {
	defer close(w.done)
	for write := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := write.apply(ctx, w.dir)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("room_id", write.gameID).Str("op", write.op).Msg("[StatusWriter] Durable update failed")
			continue
		}
		log.Debug().Str("room_id", write.gameID).Str("op", write.op).Msg("[StatusWriter] Durable update applied")
	}
}

// Close stops accepting writes and waits for the queue to drain.
func (w *statusWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
