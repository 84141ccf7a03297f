package xiangqi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initialFEN = "rnbakabnr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR"

func TestInitialLayout(t *testing.T) {
	b := Initial()
	assert.Equal(t, initialFEN, b.FEN())
	assert.Len(t, b.AllPieces(Red), 16)
	assert.Len(t, b.AllPieces(Black), 16)

	g, ok := b.FindGeneral(Red)
	require.True(t, ok)
	assert.Equal(t, Pos(9, 4), g)
	g, ok = b.FindGeneral(Black)
	require.True(t, ok)
	assert.Equal(t, Pos(0, 4), g)

	p, ok := b.Get(Pos(7, 1))
	require.True(t, ok)
	assert.Equal(t, Piece{Type: Cannon, Color: Red}, p)

	_, ok = b.Get(Pos(4, 4))
	assert.False(t, ok)
	_, ok = b.Get(Pos(10, 0))
	assert.False(t, ok)
}

func TestEmptyBoard(t *testing.T) {
	b := Empty()
	assert.Equal(t, 0, b.PieceCount())
	_, ok := b.FindGeneral(Red)
	assert.False(t, ok)
}

func TestCountPiecesBetween(t *testing.T) {
	b := Initial()
	n, err := b.CountPiecesBetween(Pos(0, 4), Pos(9, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, n, "two soldiers on the central file")

	n, err = b.CountPiecesBetween(Pos(9, 0), Pos(9, 8))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = b.CountPiecesBetween(Pos(4, 0), Pos(4, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = b.CountPiecesBetween(Pos(0, 0), Pos(9, 8))
	assert.True(t, errors.Is(err, ErrNotAligned))
}

func TestApplyMoveReturnsNewBoard(t *testing.T) {
	b := Initial()
	chariot := Piece{Type: Chariot, Color: Red}
	next := b.ApplyMove(Move{From: Pos(9, 0), To: Pos(8, 0), Piece: chariot})

	_, ok := next.Get(Pos(9, 0))
	assert.False(t, ok)
	p, ok := next.Get(Pos(8, 0))
	require.True(t, ok)
	assert.Equal(t, chariot, p)

	orig, ok := b.Get(Pos(9, 0))
	require.True(t, ok, "input board must not change")
	assert.Equal(t, chariot, orig)
	assert.Equal(t, initialFEN, b.FEN())
}

func TestApplyMoveFromEmptySquareIsNoop(t *testing.T) {
	b := Initial()
	next := b.ApplyMove(Move{From: Pos(4, 4), To: Pos(3, 4), Piece: Piece{Type: Chariot, Color: Red}})
	assert.Equal(t, b, next)
	assert.Equal(t, 32, next.PieceCount())
}

func TestSetPieceRejectsSecondGeneral(t *testing.T) {
	b := Initial()
	_, err := b.SetPiece(Pos(8, 4), Piece{Type: General, Color: Red})
	assert.True(t, errors.Is(err, ErrDuplicateGeneral))

	moved, err := b.SetPiece(Pos(9, 4), NoPiece)
	require.NoError(t, err)
	moved, err = moved.SetPiece(Pos(8, 4), Piece{Type: General, Color: Red})
	require.NoError(t, err)
	g, _ := moved.FindGeneral(Red)
	assert.Equal(t, Pos(8, 4), g)

	_, err = b.SetPiece(Pos(-1, 0), NoPiece)
	assert.True(t, errors.Is(err, ErrOffBoard))
}

func TestParseFEN(t *testing.T) {
	b, err := ParseFEN(initialFEN + " w - - 0 1")
	require.NoError(t, err)
	assert.Equal(t, Initial(), b)

	for _, bad := range []string{
		"",
		"rnbakabnr/9/9",
		"rnbakabnrr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR",
		"xnbakabnr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR",
		"knbakabnr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR",
	} {
		_, err := ParseFEN(bad)
		assert.Error(t, err, bad)
	}
}

func TestICCS(t *testing.T) {
	from, to, err := ParseICCS("h2e2")
	require.NoError(t, err)
	assert.Equal(t, Pos(7, 7), from)
	assert.Equal(t, Pos(7, 4), to)
	assert.Equal(t, "h2e2", Move{From: from, To: to}.ICCS())

	from, to, err = ParseICCS("a0-a1")
	require.NoError(t, err)
	assert.Equal(t, Pos(9, 0), from)
	assert.Equal(t, Pos(8, 0), to)

	_, _, err = ParseICCS("z9a0")
	assert.True(t, errors.Is(err, ErrBadNotation))
}
