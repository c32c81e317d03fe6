package entity

import "encoding/json"

// Frame types exchanged over the realtime connection.
const (
	TypeMakeMove   = "MAKE_MOVE"
	TypeGameState  = "GAME_STATE"
	TypeMoveResult = "MOVE_RESULT"
	TypeGameOver   = "GAME_OVER"
	TypeError      = "ERROR"
)

const (
	ReasonLine = "line"
	ReasonDraw = "draw"
)

// Envelope wraps every frame; Payload is decoded according to Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MakeMovePayload keeps raw fields so structural validation can tell
// integers from strings and fractions.
type MakeMovePayload struct {
	BoardIndex     json.RawMessage `json:"boardIndex"`
	CellIndex      json.RawMessage `json:"cellIndex"`
	SequenceNumber json.RawMessage `json:"sequenceNumber,omitempty"`
}

type GameStatePayload struct {
	GameID            string       `json:"gameId"`
	YourSymbol        string       `json:"yourSymbol"`
	Board             Board        `json:"board"`
	CurrentPlayer     string       `json:"currentPlayer"`
	Status            string       `json:"status"`
	Winner            string       `json:"winner"`
	OpponentConnected bool         `json:"opponentConnected"`
	MoveLog           []StoredMove `json:"moveLog"`
}

type MoveResultPayload struct {
	Valid         bool        `json:"valid"`
	Board         Board       `json:"board"`
	CurrentPlayer string      `json:"currentPlayer"`
	Status        string      `json:"status"`
	Error         string      `json:"error,omitempty"`
	Move          *StoredMove `json:"move,omitempty"`
}

type GameOverPayload struct {
	Winner     string `json:"winner"`
	Reason     string `json:"reason"`
	FinalBoard Board  `json:"finalBoard"`
}

type ErrorPayload struct {
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// NewEnvelope marshals payload under the given frame type.
func NewEnvelope(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{Type: frameType, Payload: raw})
}
