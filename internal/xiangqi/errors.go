package xiangqi

import "errors"

var (
	// ErrIllegalMove is wrapped with the concrete reason by Rules.Validate.
	ErrIllegalMove      = errors.New("illegal move")
	ErrOffBoard         = errors.New("position off board")
	ErrNotAligned       = errors.New("positions do not share a rank or file")
	ErrDuplicateGeneral = errors.New("color already has a general")
	ErrBadNotation      = errors.New("bad move notation")
	ErrBadFEN           = errors.New("bad board FEN")
)
