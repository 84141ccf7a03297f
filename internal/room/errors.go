package room

import "github.com/park285/cheese-xiangqi/internal/xiangqi"

var (
	ErrInvalidArgs    = errf("invalid arguments")
	ErrRoomNotFound   = errf("room not found")
	ErrRoomFull       = errf("room already has two players")
	ErrTooManyRooms   = errf("room limit reached")
	ErrNotAPlayer     = errf("not seated in this room")
	ErrNotYourTurn    = errf("not your turn")
	ErrGameNotStarted = errf("game has not started")
	ErrGameOver       = errf("game is over")
	ErrDrawPending    = errf("a draw offer is already pending")
	ErrDrawNotPending = errf("no draw offer to respond to")
	ErrRoomClosed     = errf("room closed")
	// ErrRoomAborted is returned to the caller whose action crashed the room.
	ErrRoomAborted = errf("room aborted after internal failure")

	// ErrIllegalMove is the rules package sentinel so errors.Is works across both.
	ErrIllegalMove = xiangqi.ErrIllegalMove
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
