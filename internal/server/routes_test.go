package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scythe504/rps-backend/internal"
	"github.com/scythe504/rps-backend/internal/config"
	"github.com/scythe504/rps-backend/internal/database"
	"github.com/scythe504/rps-backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv     *Server
	handler http.Handler
	db      *database.MemoryService
	coord   *game.Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.DB.Driver = "memory"
	db := database.NewMemory()
	coord := game.NewCoordinator(game.NewMemoryRegistry(), db, game.Options{})
	t.Cleanup(func() { _ = coord.Shutdown(context.Background()) })

	s := New(cfg, db, coord)
	return &testEnv{srv: s, handler: s.RegisterRoutes(), db: db, coord: coord}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, id string, status internal.GameStatus) {
	t.Helper()
	require.NoError(t, e.db.CreateGame(context.Background(), &internal.Game{
		ID: id, Player1IP: "10.0.0.1", CreatedAt: time.Now().UTC(), Status: status,
	}))
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestCreateGame(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "http://rps.example/api/create-game", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rr := e.do(req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp := decode[internal.CreateGameResponse](t, rr)
	assert.Regexp(t, `^[a-f0-9]{8}$`, resp.GameID)
	assert.Equal(t, "http://rps.example/game/"+resp.GameID, resp.Link)

	g, err := e.db.GetGame(context.Background(), resp.GameID)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusWaiting, g.Status)
	assert.Equal(t, "203.0.113.7", g.Player1IP)
	assert.Nil(t, g.Player2IP)
}

func TestCreateGameUsesPublicURL(t *testing.T) {
	e := newTestEnv(t)
	e.srv.cfg.PublicURL = "https://play.example.com/"
	e.srv.newGameID = func() string { return "0123abcd" }

	rr := e.do(httptest.NewRequest(http.MethodPost, "/api/create-game", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"gameId":"0123abcd","link":"https://play.example.com/game/0123abcd"}`, rr.Body.String())
}

func TestCreateGameRetriesCollisions(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, "aaaaaaaa", internal.StatusWaiting)

	ids := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	e.srv.newGameID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	rr := e.do(httptest.NewRequest(http.MethodPost, "/api/create-game", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "bbbbbbbb", decode[internal.CreateGameResponse](t, rr).GameID)
}

func TestCreateGameGivesUpAfterCollisions(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, "aaaaaaaa", internal.StatusWaiting)
	e.srv.newGameID = func() string { return "aaaaaaaa" }

	rr := e.do(httptest.NewRequest(http.MethodPost, "/api/create-game", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to create game room."}`, rr.Body.String())
}

func TestCreateGameStoreFailure(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.Close())

	rr := e.do(httptest.NewRequest(http.MethodPost, "/api/create-game", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to create game room."}`, rr.Body.String())
}

func TestCreateGameWithoutClientIP(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/create-game", nil)
	req.RemoteAddr = ""

	rr := e.do(req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Could not determine client IP."}`, rr.Body.String())
}

func TestCreateGameWrongMethod(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(httptest.NewRequest(http.MethodGet, "/api/create-game", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGameInfo(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, "a1b2c3d4", internal.StatusWaiting)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"known", "/api/games/a1b2c3d4", http.StatusOK},
		{"upper case", "/api/games/A1B2C3D4", http.StatusOK},
		{"unknown", "/api/games/ffffffff", http.StatusNotFound},
		{"malformed", "/api/games/xyz", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
		})
	}

	_, err := e.coord.Join(context.Background(), "a1b2c3d4", &nopTransport{})
	require.NoError(t, err)

	rr := e.do(httptest.NewRequest(http.MethodGet, "/api/games/a1b2c3d4", nil))
	info := decode[internal.GameInfo](t, rr)
	assert.Equal(t, "a1b2c3d4", info.GameID)
	assert.Equal(t, internal.StatusWaiting, info.Status)
	assert.Equal(t, 1, info.PlayerCount)
}

func TestGameQR(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, "a1b2c3d4", internal.StatusWaiting)

	rr := e.do(httptest.NewRequest(http.MethodGet, "/api/games/a1b2c3d4/qr", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))

	rr = e.do(httptest.NewRequest(http.MethodGet, "/api/games/ffffffff/qr", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[map[string]string](t, rr)
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "0", stats["live_rooms"])

	require.NoError(t, e.db.Close())
	rr = e.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStats(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, "a1b2c3d4", internal.StatusWaiting)
	_, err := e.coord.Join(context.Background(), "a1b2c3d4", &nopTransport{})
	require.NoError(t, err)

	rr := e.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		StatusCode int                `json:"status_code"`
		Data       internal.RoomStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, internal.RoomStats{Rooms: 1, Players: 1, Waiting: 1}, resp.Data)
}

func TestNotFoundIsJSON(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Sorry, can't find /nope"}`, rr.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(httptest.NewRequest(http.MethodOptions, "/api/create-game", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	e := newTestEnv(t)
	h := e.srv.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
}

func TestWebSocketRoute(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	rr := e.do(httptest.NewRequest(http.MethodPost, "/api/create-game", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	gameID := decode[internal.CreateGameResponse](t, rr).GameID

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/"+gameID, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg internal.StatusMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, internal.StatusMessage{PlayerCount: 1, Message: internal.MsgWaitingForOpponent}, msg)
}

// nopTransport accepts writes and blocks reads forever.
type nopTransport struct{}

func (nopTransport) ReadMessage() ([]byte, error) { select {} }
func (nopTransport) WriteJSON(any) error          { return nil }
func (nopTransport) Close(int, string) error      { return nil }
func (nopTransport) RemoteAddr() string           { return "10.0.0.2" }
