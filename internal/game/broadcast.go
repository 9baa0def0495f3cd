package game

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

// =============================================================================
// MESSAGE DELIVERY
// =============================================================================

// send writes msg to one player. Failures are logged and left to the
// player's receive loop, which sees the broken transport and leaves.
func send(roomID string, p *internal.Player, msg any) bool {
	if p == nil {
		return false
	}
	if err := p.SafeWriteJSON(msg); err != nil {
		ev := log.Warn()
		if errors.Is(err, internal.ErrPlayerClosed) {
			ev = log.Debug()
		}
		ev.Err(err).Str("room_id", roomID).Str("player_id", p.Id).Msg("[Send] Failed to deliver message")
		return false
	}
	return true
}

// sendAll writes msg to every player in players and returns how many got it.
func sendAll(roomID string, players []*internal.Player, msg any) int {
	delivered := 0
	for _, p := range players {
		if send(roomID, p, msg) {
			delivered++
		}
	}
	return delivered
}
