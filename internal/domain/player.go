package domain

import "time"

// Player is a seated or queued participant. Immutable for a session's lifetime.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Rating      int    `json:"rating"`
	IsGuest     bool   `json:"isGuest,omitempty"`
	IsBot       bool   `json:"isBot,omitempty"`
}

// Identity is what the external identity service vouches for.
type Identity struct {
	UserID      string
	DisplayName string
	IsGuest     bool
}

// Player converts an identity into a player with the given rating.
func (i Identity) Player(rating int) Player {
	return Player{ID: i.UserID, DisplayName: i.DisplayName, Rating: rating, IsGuest: i.IsGuest}
}

// Result of a finished game.
type Result string

const (
	ResultRedWins   Result = "win-red"
	ResultBlackWins Result = "win-black"
	ResultDraw      Result = "draw"
)

// Reason a game finished.
type Reason string

const (
	ReasonCheckmate     Reason = "checkmate"
	ReasonStalemate     Reason = "stalemate"
	ReasonResignation   Reason = "resignation"
	ReasonTimeout       Reason = "timeout"
	ReasonAbandonment   Reason = "abandonment"
	ReasonDrawAgreement Reason = "draw-agreement"
)

// GameReport is emitted once per finished room.
type GameReport struct {
	RoomID             string    `json:"roomId"`
	Result             Result    `json:"result"`
	Reason             Reason    `json:"reason"`
	Red                Player    `json:"red"`
	Black              Player    `json:"black"`
	TimeControlSeconds int       `json:"timeControlSeconds"`
	Plies              int       `json:"plies"`
	BotDifficulty      string    `json:"botDifficulty,omitempty"`
	StartedAt          time.Time `json:"startedAt"`
	EndedAt            time.Time `json:"endedAt"`
}

// PlayerRating is the persisted rating profile of a human player.
type PlayerRating struct {
	PlayerID     string
	DisplayName  string
	Rating       int
	GamesPlayed  int
	Wins         int
	Losses       int
	Draws        int
	Streak       int
	StreakType   string
	LastPlayedAt time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}
