package matchmaking

import (
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
)

// Entry is one waiting player. Created on Join, dropped on pairing or Leave.
type Entry struct {
	Player             domain.Player `json:"player"`
	SessionID          string        `json:"sessionId"`
	TimeControlSeconds int           `json:"timeControlSeconds"`
	EnqueuedAt         time.Time     `json:"enqueuedAt"`
}

// Pairing is two entries matched into a new room. Red is the entry that
// joined first.
type Pairing struct {
	RoomID string `json:"roomId"`
	Red    Entry  `json:"red"`
	Black  Entry  `json:"black"`
}

// Errors
var (
	ErrAlreadyQueued          = errf("player already queued")
	ErrUnsupportedTimeControl = errf("unsupported time control")
	ErrInvalidArgs            = errf("invalid arguments")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
