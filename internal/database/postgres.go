package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
	"github.com/scythe504/rps-backend/internal/config"
)

const pgUniqueViolation = "23505"

type postgresService struct {
	pool *pgxpool.Pool
}

func postgresURL(cfg config.Database) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   cfg.Name,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func NewPostgres(ctx context.Context, cfg config.Database) (Service, error) {
	pool, err := pgxpool.New(ctx, postgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf(createGamesTable, "TIMESTAMPTZ")); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create games table: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("[DB] Connected to postgres, games table verified")
	return &postgresService{pool: pool}, nil
}

func (s *postgresService) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("[DB] Health check failed")
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["open_connections"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["in_use"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["idle"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["max_connections"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["wait_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)
	stats["wait_duration"] = poolStats.AcquireDuration().String()

	if poolStats.AcquiredConns() > poolStats.MaxConns()*4/5 {
		stats["message"] = "The database is experiencing heavy load."
	}

	return stats
}

func (s *postgresService) CreateGame(ctx context.Context, game *internal.Game) error {
	if err := validateStatus(game.Status); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO games (game_id, player1_ip, created_at, status) VALUES ($1, $2, $3, $4)`,
		game.ID, game.Player1IP, game.CreatedAt, string(game.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("create game %s: %w", game.ID, ErrGameExists)
		}
		return fmt.Errorf("create game %s: %w", game.ID, err)
	}
	return nil
}

func (s *postgresService) GetGame(ctx context.Context, id string) (*internal.Game, error) {
	var (
		game      internal.Game
		player1IP *string
		status    string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT game_id, player1_ip, player2_ip, created_at, status FROM games WHERE game_id = $1`, id).
		Scan(&game.ID, &player1IP, &game.Player2IP, &game.CreatedAt, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	if player1IP != nil {
		game.Player1IP = *player1IP
	}
	game.Status = internal.GameStatus(status)
	return &game, nil
}

func (s *postgresService) exec(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update game %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (s *postgresService) SetStatus(ctx context.Context, id string, status internal.GameStatus) error {
	if err := validateStatus(status); err != nil {
		return err
	}
	return s.exec(ctx, id, `UPDATE games SET status = $1 WHERE game_id = $2`, string(status), id)
}

func (s *postgresService) SetActive(ctx context.Context, id string, player2IP string) error {
	return s.exec(ctx, id, `UPDATE games SET status = $1, player2_ip = $2 WHERE game_id = $3`,
		string(internal.StatusActive), player2IP, id)
}

func (s *postgresService) ResetToWaiting(ctx context.Context, id string) error {
	return s.exec(ctx, id, `UPDATE games SET status = $1, player2_ip = NULL WHERE game_id = $2`,
		string(internal.StatusWaiting), id)
}

// Close closes the pool. It blocks until every acquired connection is released.
func (s *postgresService) Close() error {
	log.Info().Msg("[DB] Closing postgres pool")
	s.pool.Close()
	return nil
}
