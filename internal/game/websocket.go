package game

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal/utils"
)

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WSPathPrefix is the path under which the game id is read.
const WSPathPrefix = "/ws/"

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport adapts a gorilla connection to internal.Transport and keeps it
// alive with pings until closed.
type wsTransport struct {
	conn *websocket.Conn
	addr string

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn, addr string) *wsTransport {
	t := &wsTransport{conn: conn, addr: addr, done: make(chan struct{})}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go t.pingLoop()
	return t
}

func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("remote_addr", t.addr).Msg("[Ping] Peer unreachable, dropping connection")
				// Unblocks ReadMessage so the disconnect protocol runs.
				_ = t.conn.Close()
				return
			}
		}
	}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(v)
}

// Close sends a close frame with code and reason, then drops the connection.
func (t *wsTransport) Close(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		msg := websocket.FormatCloseMessage(code, reason)
		if werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); werr != nil &&
			werr != websocket.ErrCloseSent {
			log.Debug().Err(werr).Str("remote_addr", t.addr).Msg("[Close] Could not send close frame")
		}
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}

// HandleWebSocket upgrades the request and serves it until the peer leaves.
// The game id is validated after the upgrade so a bad path gets a close code
// instead of an HTTP error.
func (c *Coordinator) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("[HandleWebSocket] Upgrade failed")
		return
	}

	addr := utils.RealIP(r)
	gameID := strings.TrimPrefix(r.URL.Path, WSPathPrefix)
	log.Debug().Str("path_id", gameID).Str("remote_addr", addr).Msg("[HandleWebSocket] Connection upgraded")

	c.Serve(r.Context(), gameID, newWSTransport(conn, addr))
}
