package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
	"github.com/scythe504/rps-backend/internal/database"
	"github.com/scythe504/rps-backend/internal/game"
	"github.com/scythe504/rps-backend/internal/utils"
	"github.com/skip2/go-qrcode"
)

const maxCreateAttempts = 5

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.recoverMiddleware)
	r.Use(s.corsMiddleware)

	r.HandleFunc("/api/create-game", s.CreateGameHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/games/{gameId}", s.GameInfoHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/games/{gameId}/qr", s.GameQRHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/stats", s.StatsHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)

	// The game id is validated after the upgrade so malformed paths still get
	// a websocket close code.
	r.PathPrefix(game.WSPathPrefix).HandlerFunc(s.coord.HandleWebSocket)

	r.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowedHandler)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Bytes("stack", debug.Stack()).
					Msg("[Recover] Handler panicked")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("[writeJSON] Error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, internal.ErrorMessage{Error: msg})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Sorry, can't find "+r.URL.Path)
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed on "+r.URL.Path)
}

// baseURL is the configured public url, or the one the request came in on.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimSuffix(s.cfg.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (s *Server) gameLink(r *http.Request, gameID string) string {
	return s.baseURL(r) + "/game/" + gameID
}

func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	ip := utils.RealIP(r)
	if ip == "" {
		log.Warn().Msg("[CreateGame] Could not determine client IP")
		writeError(w, http.StatusBadRequest, "Could not determine client IP.")
		return
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		g := &internal.Game{
			ID:        s.newGameID(),
			Player1IP: ip,
			CreatedAt: time.Now().UTC(),
			Status:    internal.StatusWaiting,
		}

		err := s.db.CreateGame(r.Context(), g)
		if errors.Is(err, database.ErrGameExists) {
			log.Warn().Str("room_id", g.ID).Int("attempt", attempt).Msg("[CreateGame] Game id collision, retrying")
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("remote_addr", ip).Msg("[CreateGame] Game creation failed")
			writeError(w, http.StatusInternalServerError, "Failed to create game room.")
			return
		}

		log.Info().Str("room_id", g.ID).Str("remote_addr", ip).Msg("[CreateGame] Game created")
		writeJSON(w, http.StatusCreated, internal.CreateGameResponse{
			GameID: g.ID,
			Link:   s.gameLink(r, g.ID),
		})
		return
	}

	log.Error().Int("attempts", maxCreateAttempts).Msg("[CreateGame] Could not find a free game id")
	writeError(w, http.StatusInternalServerError, "Failed to create game room.")
}

// lookupGame resolves the {gameId} path variable and writes the error
// response itself when it returns nil.
func (s *Server) lookupGame(w http.ResponseWriter, r *http.Request) *internal.Game {
	gameID, ok := utils.NormalizeGameID(mux.Vars(r)["gameId"])
	if !ok {
		writeError(w, http.StatusBadRequest, internal.ErrInvalidPath)
		return nil
	}

	g, err := s.db.GetGame(r.Context(), gameID)
	if errors.Is(err, database.ErrGameNotFound) {
		writeError(w, http.StatusNotFound, internal.ErrGameNotFound)
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", gameID).Msg("[GameInfo] Lookup failed")
		writeError(w, http.StatusInternalServerError, "Error checking game status.")
		return nil
	}
	return g
}

func (s *Server) GameInfoHandler(w http.ResponseWriter, r *http.Request) {
	g := s.lookupGame(w, r)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, internal.GameInfo{
		GameID:      g.ID,
		Status:      g.Status,
		PlayerCount: s.coord.PlayerCount(g.ID),
		CreatedAt:   g.CreatedAt,
	})
}

// GameQRHandler renders the share link of a game as a PNG QR code.
func (s *Server) GameQRHandler(w http.ResponseWriter, r *http.Request) {
	g := s.lookupGame(w, r)
	if g == nil {
		return
	}

	png, err := qrcode.Encode(s.gameLink(r, g.ID), qrcode.Medium, s.cfg.QRSize)
	if err != nil {
		log.Error().Err(err).Str("room_id", g.ID).Msg("[GameQR] QR generation failed")
		writeError(w, http.StatusInternalServerError, "QR generation failed.")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.db.Health()
	stats["live_rooms"] = strconv.Itoa(s.coord.Registry().Len())

	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, stats)
}

func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	resp := internal.Response{
		StatusCode:    http.StatusOK,
		RespStartTime: startTime,
		Data:          s.coord.Stats(),
	}

	endTime := time.Now().UnixMilli()
	resp.RespEndTime = endTime
	resp.NetRespTime = endTime - startTime

	writeJSON(w, resp.StatusCode, resp)
}
