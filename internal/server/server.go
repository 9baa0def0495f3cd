package server

import (
	"net/http"
	"time"

	"github.com/scythe504/rps-backend/internal/config"
	"github.com/scythe504/rps-backend/internal/database"
	"github.com/scythe504/rps-backend/internal/game"
	"github.com/scythe504/rps-backend/internal/utils"
)

type Server struct {
	cfg   *config.Config
	db    database.Service
	coord *game.Coordinator

	newGameID func() string
}

func New(cfg *config.Config, db database.Service, coord *game.Coordinator) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		coord:     coord,
		newGameID: utils.GenerateGameID,
	}
}

// NewServer wires the handlers into an http.Server listening on cfg.Addr().
// No write timeout is set because websocket connections outlive any request.
func NewServer(cfg *config.Config, db database.Service, coord *game.Coordinator) *http.Server {
	s := New(cfg, db, coord)

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
	}
}
