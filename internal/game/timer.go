package game

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

// scheduleNextRound prompts both players after the configured delay. A player
// may leave during the wait, so the room is checked again when it fires.
func (c *Coordinator) scheduleNextRound(room *internal.Room) {
	round := room.RoundNumber
	time.AfterFunc(c.opts.NextRoundDelay, func() {
		room.Mu.Lock()
		ready := !room.Closed && room.CanPlay()
		players := room.PlayersSnapshot()
		room.Mu.Unlock()

		if !ready {
			log.Debug().Str("room_id", room.Id).Int("round", round).Msg("[NextRound] Skipped prompt, room not ready")
			return
		}
		sendAll(room.Id, players, internal.InfoMessage{Message: internal.MsgNextChoice})
	})
}
