package entity

import (
	"crypto/subtle"
	"time"
)

// QueueEntry is a player waiting in the matchmaking queue.
type QueueEntry struct {
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// MatchRecord delivers a completed pairing to a polling player. It is handed out
// once; the delivered record stays behind until it expires.
type MatchRecord struct {
	GameID    string    `json:"gameId"`
	Symbol    string    `json:"symbol"`
	Token     string    `json:"token"`
	MatchedAt time.Time `json:"matchedAt"`
	Delivered bool      `json:"delivered"`
}

// Admission authorizes one player to connect to a match.
type Admission struct {
	PlayerID string `json:"id"`
	Symbol   string `json:"symbol"`
	Token    string `json:"token"`
}

// MatchAdmission is the persisted admission list of a match.
type MatchAdmission struct {
	GameID    string      `json:"gameId"`
	Players   []Admission `json:"players"`
	CreatedAt time.Time   `json:"createdAt"`
}

// MatchSnapshot is everything a session actor persists.
type MatchSnapshot struct {
	Admission *MatchAdmission
	Moves     []StoredMove
}

// SamePlayers reports whether both lists admit the same players with the same symbols and tokens.
func (that *MatchAdmission) SamePlayers(players []Admission) bool {
	if len(that.Players) != len(players) {
		return false
	}

	for _, existing := range that.Players {
		found := false
		for _, candidate := range players {
			if candidate.PlayerID == existing.PlayerID && candidate.Symbol == existing.Symbol &&
				subtle.ConstantTimeCompare([]byte(candidate.Token), []byte(existing.Token)) == 1 {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

func (that *MatchAdmission) Find(playerID string) (Admission, bool) {
	for _, admission := range that.Players {
		if admission.PlayerID == playerID {
			return admission, true
		}
	}

	return Admission{}, false
}

// MatchInfo is the public summary of a session actor.
type MatchInfo struct {
	GameID         string `json:"gameId"`
	ConnectedCount int    `json:"connectedCount"`
	Status         string `json:"status"`
}
