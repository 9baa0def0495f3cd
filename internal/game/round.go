package game

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/rps-backend/internal"
)

// =============================================================================
// ROUND PROTOCOL
// =============================================================================

// parseChoice decodes a {"choice": ...} frame.
func parseChoice(raw []byte) (internal.Choice, bool) {
	var msg internal.ChoiceMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Choice == nil {
		return "", false
	}
	choice, err := internal.ParseChoice(*msg.Choice)
	if err != nil {
		return "", false
	}
	return choice, true
}

// HandleMessage processes one inbound frame from s.
func (c *Coordinator) HandleMessage(s *Session, raw []byte) {
	room, player := s.Room, s.Player

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if !room.HasPlayer(player) {
		return
	}

	if !room.CanPlay() {
		send(room.Id, player, internal.InfoMessage{Message: internal.MsgStillWaiting})
		return
	}

	choice, ok := parseChoice(raw)
	if !ok {
		log.Warn().Str("room_id", room.Id).Str("player_id", player.Id).Int("bytes", len(raw)).
			Msg("[HandleChoice] Invalid message")
		send(room.Id, player, internal.InvalidMessage(internal.ErrInvalidMessage))
		return
	}

	if room.HasChosen(player.Id) {
		send(room.Id, player, internal.InfoMessage{Message: internal.MsgAlreadyChose})
		return
	}

	pending := room.RecordChoice(player.Id, choice)
	log.Debug().Str("room_id", room.Id).Str("player_id", player.Id).Str("choice", string(choice)).
		Int("round", room.RoundNumber).Msg("[HandleChoice] Choice recorded")
	send(room.Id, player, internal.InfoMessage{Message: internal.MsgChoiceReceived})

	if pending == 1 {
		send(room.Id, room.Opponent(player), internal.InfoMessage{Message: internal.MsgOpponentMoved})
		return
	}
	if pending == internal.MaxPlayersPerRoom {
		c.resolveRound(room)
	}
}

// resolveRound sends each player its personalised result and clears the
// pending choices. Caller holds room.Mu.
func (c *Coordinator) resolveRound(room *internal.Room) {
	choices := room.TakePending()
	a, b := choices[0], choices[1]
	outcome := Resolve(a.Choice, b.Choice)

	send(room.Id, room.GetPlayerByID(a.PlayerID), internal.ResultMessage{YourChoice: a.Choice, OpponentChoice: b.Choice})
	send(room.Id, room.GetPlayerByID(b.PlayerID), internal.ResultMessage{YourChoice: b.Choice, OpponentChoice: a.Choice})

	log.Info().Str("room_id", room.Id).Int("round", room.RoundNumber).
		Str("choice_a", string(outcome.A)).Str("choice_b", string(outcome.B)).
		Str("winner", outcome.Winner.String()).Msg("[ResolveRound] Round complete")

	room.RoundNumber++
	c.scheduleNextRound(room)
}
