package engine

import "github.com/park285/cheese-xiangqi/internal/xiangqi"

var pieceValues = map[xiangqi.PieceType]int{
	xiangqi.General:  10000,
	xiangqi.Chariot:  900,
	xiangqi.Cannon:   450,
	xiangqi.Horse:    400,
	xiangqi.Elephant: 200,
	xiangqi.Advisor:  200,
	xiangqi.Soldier:  100,
}

// PieceValue is the material value used by the evaluator and move ordering.
func PieceValue(t xiangqi.PieceType) int { return pieceValues[t] }

// advance counts rows a piece of color c has moved from its own back rank.
func advance(pos xiangqi.Position, c xiangqi.Color) int {
	if c == xiangqi.Red {
		return xiangqi.Rows - 1 - pos.Row
	}
	return pos.Row
}

func crossed(pos xiangqi.Position, c xiangqi.Color) bool { return advance(pos, c) >= 5 }

// positional returns the non-material bonus for a single piece.
func positional(pos xiangqi.Position, p xiangqi.Piece) int {
	centre := 4 - abs(pos.Col-4)
	switch p.Type {
	case xiangqi.Soldier:
		if !crossed(pos, p.Color) {
			return 0
		}
		// a crossed soldier is worth double; nearer the palace is better,
		// but one stuck on the last rank can only go sideways
		bonus := 100 + 10*(advance(pos, p.Color)-5) + 5*centre
		if advance(pos, p.Color) == xiangqi.Rows-1 {
			bonus -= 40
		}
		return bonus
	case xiangqi.Horse:
		if advance(pos, p.Color) == 0 {
			return -15
		}
		return 4 * centre
	case xiangqi.Chariot:
		if crossed(pos, p.Color) {
			return 20
		}
		return 0
	case xiangqi.Cannon:
		if pos.Col == 4 {
			return 15
		}
		return 0
	}
	return 0
}

// Evaluate scores b from c's point of view in centipawn-like units.
func Evaluate(b xiangqi.Board, c xiangqi.Color) int {
	score := 0
	for _, pl := range b.AllPieces(c) {
		score += pieceValues[pl.Piece.Type] + positional(pl.Pos, pl.Piece)
	}
	for _, pl := range b.AllPieces(c.Opponent()) {
		score -= pieceValues[pl.Piece.Type] + positional(pl.Pos, pl.Piece)
	}
	return score
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
