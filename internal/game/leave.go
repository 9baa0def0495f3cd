package game

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

// =============================================================================
// DISCONNECT PROTOCOL
// =============================================================================

// Leave removes s from its room and closes its transport. It runs at most
// once per session.
func (c *Coordinator) Leave(s *Session) {
	s.leaveOnce.Do(func() {
		c.leave(s)
		if err := s.Player.SafeClose(CloseNormal, ""); err != nil {
			log.Debug().Err(err).Str("player_id", s.Player.Id).Msg("[Leave] Close failed")
		}
	})
}

func (c *Coordinator) leave(s *Session) {
	room, player := s.Room, s.Player
	gameID := s.GameID

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if !room.RemovePlayer(player) {
		return
	}
	remaining := room.GetPlayerCount()
	log.Info().Str("room_id", gameID).Str("player_id", player.Id).Int("remaining", remaining).
		Msg("[RemovePlayer] Player left")

	if remaining == 0 {
		if !c.registry.Evict(room) {
			return
		}
		c.writer.enqueue(statusWrite{
			gameID: gameID,
			op:     "set_abandoned",
			apply: func(ctx context.Context, dir Directory) error {
				return dir.SetStatus(ctx, gameID, internal.StatusAbandoned)
			},
		})
		return
	}

	sendAll(gameID, room.Players, internal.StatusMessage{
		PlayerCount: remaining,
		Message:     internal.MsgOpponentDisconnected,
	})
	c.writer.enqueue(statusWrite{
		gameID: gameID,
		op:     "reset_waiting",
		apply: func(ctx context.Context, dir Directory) error {
			return dir.ResetToWaiting(ctx, gameID)
		},
	})
}
