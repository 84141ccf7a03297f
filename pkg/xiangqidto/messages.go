package xiangqidto

import "time"

// MovePayload is a move on the 10x9 grid, 0-indexed. Row 0 is black's back rank.
type MovePayload struct {
	FromRow int `json:"fromRow"`
	FromCol int `json:"fromCol"`
	ToRow   int `json:"toRow"`
	ToCol   int `json:"toCol"`
}

// ChatPayload is sent by clients. With a room id on the envelope it is
// room-scoped, otherwise global.
type ChatPayload struct {
	Text string `json:"text"`
}

type ChatMessage struct {
	RoomID   string    `json:"roomId,omitempty"`
	FromID   string    `json:"fromId"`
	FromName string    `json:"fromName"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

type JoinMatchmakingPayload struct {
	TimeControlSeconds int `json:"timeControlSeconds"`
}

type RespondDrawPayload struct {
	Accept bool `json:"accept"`
}

type QueuedPayload struct {
	TimeControlSeconds int    `json:"timeControlSeconds"`
	Message            string `json:"message,omitempty"`
}

type PairedPayload struct {
	RoomID             string `json:"roomId"`
	Color              string `json:"color"`
	OpponentID         string `json:"opponentId"`
	OpponentName       string `json:"opponentName"`
	OpponentRating     int    `json:"opponentRating"`
	TimeControlSeconds int    `json:"timeControlSeconds"`
	Message            string `json:"message,omitempty"`
}

type MatchmakingLeftPayload struct {
	Removed bool `json:"removed"`
}

// MoveAppliedPayload echoes an accepted move with the state after it.
type MoveAppliedPayload struct {
	Move  any `json:"move"`
	State any `json:"state"`
}

type ConnectionStatePayload struct {
	PlayerID string `json:"playerId"`
	Color    string `json:"color"`
	State    string `json:"state"`
	Message  string `json:"message,omitempty"`
}

type DrawPayload struct {
	PlayerID string `json:"playerId"`
	Color    string `json:"color"`
	Message  string `json:"message,omitempty"`
}

// GameOverPayload is the game-over report plus the final state.
type GameOverPayload struct {
	RoomID  string `json:"roomId"`
	Result  string `json:"result"`
	Reason  string `json:"reason"`
	Winner  string `json:"winner,omitempty"`
	Message string `json:"message,omitempty"`
	State   any    `json:"state"`
}

type RejoinRoom struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Status string `json:"status"`
}

type RejoinPayload struct {
	Rooms   []RejoinRoom `json:"rooms"`
	Message string       `json:"message,omitempty"`
}
