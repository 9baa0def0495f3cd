package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

type sqliteService struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database file at path.
func NewSQLite(ctx context.Context, path string) (Service, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(createGamesTable, "TEXT")); err != nil {
		db.Close()
		return nil, fmt.Errorf("create games table: %w", err)
	}

	log.Info().Str("path", path).Msg("[DB] Connected to sqlite, games table verified")
	return &sqliteService{db: db, path: path}, nil
}

func (s *sqliteService) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("[DB] Health check failed")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

func (s *sqliteService) CreateGame(ctx context.Context, game *internal.Game) error {
	if err := validateStatus(game.Status); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games (game_id, player1_ip, created_at, status) VALUES (?, ?, ?, ?)`,
		game.ID, game.Player1IP, game.CreatedAt.UTC().Format(time.RFC3339Nano), string(game.Status))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("create game %s: %w", game.ID, ErrGameExists)
		}
		return fmt.Errorf("create game %s: %w", game.ID, err)
	}
	return nil
}

func (s *sqliteService) GetGame(ctx context.Context, id string) (*internal.Game, error) {
	var (
		game      internal.Game
		player1IP sql.NullString
		player2IP sql.NullString
		createdAt string
		status    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT game_id, player1_ip, player2_ip, created_at, status FROM games WHERE game_id = ?`, id).
		Scan(&game.ID, &player1IP, &player2IP, &createdAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}

	game.Player1IP = player1IP.String
	if player2IP.Valid {
		game.Player2IP = &player2IP.String
	}
	game.Status = internal.GameStatus(status)
	if game.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("get game %s: bad created_at %q: %w", id, createdAt, err)
	}
	return &game, nil
}

func (s *sqliteService) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update game %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game %s: %w", id, err)
	}
	if n == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (s *sqliteService) SetStatus(ctx context.Context, id string, status internal.GameStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	return s.exec(ctx, id, `UPDATE games SET status = ? WHERE game_id = ?`, string(status), id)
}

func (s *sqliteService) SetActive(ctx context.Context, id string, player2IP string) error {
	return s.exec(ctx, id, `UPDATE games SET status = ?, player2_ip = ? WHERE game_id = ?`,
		string(internal.StatusActive), player2IP, id)
}

func (s *sqliteService) ResetToWaiting(ctx context.Context, id string) error {
	return s.exec(ctx, id, `UPDATE games SET status = ?, player2_ip = NULL WHERE game_id = ?`,
		string(internal.StatusWaiting), id)
}

func (s *sqliteService) Close() error {
	log.Info().Str("path", s.path).Msg("[DB] Closing sqlite database")
	return s.db.Close()
}
