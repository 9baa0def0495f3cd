package game

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
	"github.com/scythe504/rps-backend/internal/database"
	"github.com/scythe504/rps-backend/internal/utils"
)

// =============================================================================
// JOIN PROTOCOL
// =============================================================================

// RejectError is returned by Join when a connection is turned away. The
// payload has already been sent and the transport closed with Code.
type RejectError struct {
	Err     error
	Payload internal.ErrorMessage
	Code    int
	Reason  string
}

func (e *RejectError) Error() string {
	return e.Err.Error() + ": " + e.Payload.Error
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func reject(conn internal.Transport, rej *RejectError) *RejectError {
	if err := conn.WriteJSON(rej.Payload); err != nil {
		log.Debug().Err(err).Str("remote_addr", conn.RemoteAddr()).Msg("[Join] Could not send rejection")
	}
	if err := conn.Close(rej.Code, rej.Reason); err != nil {
		log.Debug().Err(err).Str("remote_addr", conn.RemoteAddr()).Msg("[Join] Could not close rejected connection")
	}
	return rej
}

func rejectEnded(status internal.GameStatus) *RejectError {
	return &RejectError{
		Err:     ErrGameEnded,
		Payload: internal.GameEndedMessage(status),
		Code:    CloseGameEnded,
		Reason:  ReasonGameEnded,
	}
}

// Join validates rawID against the directory, attaches conn to the room and
// sends the join status. On rejection the connection is already closed and
// the returned error is a *RejectError.
func (c *Coordinator) Join(ctx context.Context, rawID string, conn internal.Transport) (*Session, error) {
	gameID, ok := utils.NormalizeGameID(rawID)
	if !ok {
		log.Warn().Str("path_id", rawID).Str("remote_addr", conn.RemoteAddr()).Msg("[Join] Invalid game id in path")
		return nil, reject(conn, &RejectError{
			Err:     ErrInvalidGameID,
			Payload: internal.ErrorMessage{Error: internal.ErrInvalidPath},
			Code:    CloseInvalidPath,
			Reason:  ReasonInvalidPath,
		})
	}

	notFound := &RejectError{
		Err:     ErrGameNotFound,
		Payload: internal.ErrorMessage{Error: internal.ErrGameNotFound},
		Code:    CloseNotFound,
		Reason:  ReasonNotFound,
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.opts.LookupTimeout)
	game, err := c.directory.GetGame(lookupCtx, gameID)
	cancel()
	switch {
	case errors.Is(err, database.ErrGameNotFound):
		log.Info().Str("room_id", gameID).Msg("[Join] Game not in directory")
		return nil, reject(conn, notFound)
	case err != nil:
		// The store is unreachable; a room that is already live is still trusted.
		if c.registry.Get(gameID) == nil {
			log.Error().Err(err).Str("room_id", gameID).Msg("[Join] Directory lookup failed and no live room")
			return nil, reject(conn, notFound)
		}
		log.Warn().Err(err).Str("room_id", gameID).Msg("[Join] Directory lookup failed, using live room")
	case game.Status.Ended():
		log.Info().Str("room_id", gameID).Str("status", string(game.Status)).Msg("[Join] Game already ended")
		return nil, reject(conn, rejectEnded(game.Status))
	}

	room := c.registry.GetOrCreate(gameID)

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Closed {
		log.Info().Str("room_id", gameID).Msg("[Join] Room was abandoned while joining")
		return nil, reject(conn, rejectEnded(internal.StatusAbandoned))
	}
	if room.IsFull() {
		log.Info().Str("room_id", gameID).Str("remote_addr", conn.RemoteAddr()).Msg("[Join] Room full")
		return nil, reject(conn, &RejectError{
			Err:     ErrRoomFull,
			Payload: internal.ErrorMessage{Error: internal.ErrGameFull},
			Code:    CloseGameFull,
			Reason:  ReasonGameFull,
		})
	}

	player := internal.NewPlayer(utils.GenerateID(0), conn, conn.RemoteAddr())
	count := room.AddPlayer(player)
	s := &Session{GameID: gameID, Player: player, Room: room}

	log.Info().Str("room_id", gameID).Str("player_id", player.Id).Str("remote_addr", player.Addr).
		Int("players", count).Msg("[AddPlayer] Player joined")

	// Join status is sent under the room lock so it is ordered before any
	// message caused by a later join, choice or leave.
	if count == 1 {
		send(gameID, player, internal.StatusMessage{PlayerCount: 1, Message: internal.MsgWaitingForOpponent})
		c.writer.enqueue(statusWrite{
			gameID: gameID,
			op:     "set_waiting",
			apply: func(ctx context.Context, dir Directory) error {
				return dir.SetStatus(ctx, gameID, internal.StatusWaiting)
			},
		})
		return s, nil
	}

	sendAll(gameID, room.Players, internal.StatusMessage{
		PlayerCount: count,
		Message:     internal.MsgOpponentConnected,
	})
	addr := player.Addr
	c.writer.enqueue(statusWrite{
		gameID: gameID,
		op:     "set_active",
		apply: func(ctx context.Context, dir Directory) error {
			return dir.SetActive(ctx, gameID, addr)
		},
	})
	return s, nil
}
