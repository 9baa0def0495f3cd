package internal

// Outbound messages. Clients tell them apart by which fields are present, so
// none of them carries a type discriminator.

// StatusMessage reports how many players are in the room.
type StatusMessage struct {
	PlayerCount int    `json:"playerCount"`
	Message     string `json:"message,omitempty"`
}

// InfoMessage is a plain status line.
type InfoMessage struct {
	Message string `json:"message"`
}

// ResultMessage is personalised per recipient.
type ResultMessage struct {
	YourChoice     Choice `json:"yourChoice"`
	OpponentChoice Choice `json:"opponentChoice"`
}

// ErrorMessage is fatal when it mentions "full", "not found" or "ended";
// anything else is recoverable.
type ErrorMessage struct {
	Error string `json:"error"`
}

// ChoiceMessage is the only inbound message.
type ChoiceMessage struct {
	Choice *string `json:"choice"`
}

const (
	MsgWaitingForOpponent   = "Waiting for opponent to join..."
	MsgOpponentConnected    = "Opponent connected! Make your choice."
	MsgStillWaiting         = "Still waiting for opponent..."
	MsgAlreadyChose         = "You already chose. Waiting for opponent..."
	MsgChoiceReceived       = "Choice received. Waiting..."
	MsgOpponentMoved        = "Your opponent has made their move!"
	MsgNextChoice           = "Make your next choice!"
	MsgOpponentDisconnected = "Your opponent has disconnected. Waiting..."

	ErrInvalidPath    = "Invalid connection path format."
	ErrGameNotFound   = "Game not found or has expired."
	ErrGameFull       = "This game session is already full."
	ErrInvalidMessage = "Invalid message format or choice."
)

// InvalidMessage builds the recoverable error payload for a bad inbound frame.
func InvalidMessage(reason string) ErrorMessage {
	return ErrorMessage{Error: "Invalid message: " + reason}
}

// GameEndedMessage is sent before closing a connection to a finished room.
func GameEndedMessage(status GameStatus) ErrorMessage {
	return ErrorMessage{Error: "This game has already " + string(status) + "."}
}
