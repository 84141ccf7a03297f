package room

import (
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// ConnState describes a seat's link to its player.
type ConnState string

const (
	// ConnConnecting is a seat assigned by matchmaking whose player has not attached yet.
	ConnConnecting   ConnState = "CONNECTING"
	ConnConnected    ConnState = "CONNECTED"
	ConnReconnecting ConnState = "RECONNECTING"
	ConnDisconnected ConnState = "DISCONNECTED"
)

// SeatView is the public view of one seat.
type SeatView struct {
	Player        domain.Player `json:"player"`
	Color         string        `json:"color"`
	Connection    ConnState     `json:"connection"`
	BotDifficulty string        `json:"botDifficulty,omitempty"`
}

// MoveRecord is an applied move as kept in the room's move list.
type MoveRecord struct {
	Ply         int       `json:"ply"`
	Color       string    `json:"color"`
	FromRow     int       `json:"fromRow"`
	FromCol     int       `json:"fromCol"`
	ToRow       int       `json:"toRow"`
	ToCol       int       `json:"toCol"`
	Piece       string    `json:"piece"`
	Captured    string    `json:"captured,omitempty"`
	ICCS        string    `json:"iccs"`
	SpentMillis int64     `json:"spentMillis"`
	At          time.Time `json:"at"`
}

// Outcome is set once a room is FINISHED with a result. A room closed
// before play started has none.
type Outcome struct {
	Result domain.Result `json:"result"`
	Reason domain.Reason `json:"reason"`
	Winner string        `json:"winner,omitempty"`
}

// Snapshot is a consistent copy of a room's state after some action.
type Snapshot struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Status             Status       `json:"status"`
	Private            bool         `json:"private"`
	TimeControlSeconds int          `json:"timeControlSeconds"`
	Red                *SeatView    `json:"red,omitempty"`
	Black              *SeatView    `json:"black,omitempty"`
	Turn               string       `json:"turn"`
	InCheck            bool         `json:"inCheck"`
	RedTimeMillis      int64        `json:"redTimeMillis"`
	BlackTimeMillis    int64        `json:"blackTimeMillis"`
	FEN                string       `json:"fen"`
	Moves              []MoveRecord `json:"moves"`
	DrawOfferedBy      string       `json:"drawOfferedBy,omitempty"`
	Outcome            *Outcome     `json:"outcome,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	StartedAt          time.Time    `json:"startedAt,omitempty"`
	LastMoveAt         time.Time    `json:"lastMoveAt,omitempty"`
}

// LastMove returns the most recent move, if any.
func (s Snapshot) LastMove() (MoveRecord, bool) {
	if len(s.Moves) == 0 {
		return MoveRecord{}, false
	}
	return s.Moves[len(s.Moves)-1], true
}

// Seated reports whether playerID holds either seat.
func (s Snapshot) Seated(playerID string) bool {
	return (s.Red != nil && s.Red.Player.ID == playerID) || (s.Black != nil && s.Black.Player.ID == playerID)
}

// Summary is one row of the active-rooms listing.
type Summary struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Host               *domain.Player `json:"host,omitempty"`
	Guest              *domain.Player `json:"guest,omitempty"`
	Status             Status         `json:"status"`
	TimeControlSeconds int            `json:"timeControlSeconds"`
	Private            bool           `json:"private"`
	CreatedAt          time.Time      `json:"createdAt"`
}

func (s Snapshot) Summary() Summary {
	out := Summary{
		ID:                 s.ID,
		Name:               s.Name,
		Status:             s.Status,
		TimeControlSeconds: s.TimeControlSeconds,
		Private:            s.Private,
		CreatedAt:          s.CreatedAt,
	}
	if s.Red != nil {
		p := s.Red.Player
		out.Host = &p
	}
	if s.Black != nil {
		p := s.Black.Player
		out.Guest = &p
	}
	return out
}

// EventKind names a room event on the wire.
type EventKind string

const (
	EventRoomState       EventKind = "room_state"
	EventMoveApplied     EventKind = "move_applied"
	EventDrawOffered     EventKind = "draw_offered"
	EventDrawDeclined    EventKind = "draw_declined"
	EventConnectionState EventKind = "connection_state"
	EventGameOver        EventKind = "game_over"
)

// Event is what a room tells its subscribers. Snapshot is always set.
type Event struct {
	Kind     EventKind
	RoomID   string
	Snapshot Snapshot
	Move     *MoveRecord
	// Color and PlayerID identify the seat an offer or connection change is about.
	Color      string
	PlayerID   string
	Connection ConnState
}

// Broadcaster fans room events out to subscribers. It is called from the
// room's goroutine and must not block or call back into the room.
type Broadcaster interface {
	Broadcast(ev Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(Event) {}
