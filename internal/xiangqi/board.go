package xiangqi

import (
	"fmt"
	"strings"
)

// Board is an immutable 10x9 grid. It is a plain value: copies are cheap and
// every mutating method returns a new Board.
type Board struct {
	cells [Rows * Cols]Piece
}

// Placed pairs a piece with its square.
type Placed struct {
	Pos   Position
	Piece Piece
}

var backRank = [Cols]PieceType{Chariot, Horse, Elephant, Advisor, General, Advisor, Elephant, Horse, Chariot}

// Empty returns a board with no pieces.
func Empty() Board { return Board{} }

// Initial returns the standard starting layout.
func Initial() Board {
	var b Board
	for col, t := range backRank {
		b.cells[Pos(0, col).index()] = Piece{Type: t, Color: Black}
		b.cells[Pos(9, col).index()] = Piece{Type: t, Color: Red}
	}
	for _, col := range []int{1, 7} {
		b.cells[Pos(2, col).index()] = Piece{Type: Cannon, Color: Black}
		b.cells[Pos(7, col).index()] = Piece{Type: Cannon, Color: Red}
	}
	for col := 0; col < Cols; col += 2 {
		b.cells[Pos(3, col).index()] = Piece{Type: Soldier, Color: Black}
		b.cells[Pos(6, col).index()] = Piece{Type: Soldier, Color: Red}
	}
	return b
}

// Get returns the piece at pos, or false for empty/off-board squares.
func (b Board) Get(pos Position) (Piece, bool) {
	if !pos.Valid() {
		return NoPiece, false
	}
	p := b.cells[pos.index()]
	return p, !p.IsZero()
}

func (b Board) at(pos Position) Piece { return b.cells[pos.index()] }

// SetPiece returns a copy with piece placed at pos. NoPiece clears the square.
// A second general of the same color is rejected.
func (b Board) SetPiece(pos Position, piece Piece) (Board, error) {
	if !pos.Valid() {
		return b, fmt.Errorf("%w: %v", ErrOffBoard, pos)
	}
	if piece.Type == General {
		if g, ok := b.FindGeneral(piece.Color); ok && g != pos {
			return b, fmt.Errorf("%w: %s at %s", ErrDuplicateGeneral, piece.Color, g)
		}
	}
	b.cells[pos.index()] = piece
	return b, nil
}

// ApplyMove moves whatever stands on m.From to m.To, capturing the occupant.
// The receiver is a copy, so the caller's board is never touched. A move from
// an empty or off-board square yields an identical board.
func (b Board) ApplyMove(m Move) Board {
	if !m.From.Valid() || !m.To.Valid() || m.From == m.To {
		return b
	}
	p := b.at(m.From)
	if p.IsZero() {
		return b
	}
	b.cells[m.To.index()] = p
	b.cells[m.From.index()] = NoPiece
	return b
}

// AllPieces lists a color's pieces in row-major order.
func (b Board) AllPieces(c Color) []Placed {
	out := make([]Placed, 0, 16)
	for i, p := range b.cells {
		if !p.IsZero() && p.Color == c {
			out = append(out, Placed{Pos: Position{Row: i / Cols, Col: i % Cols}, Piece: p})
		}
	}
	return out
}

// PieceCount counts all pieces on the board.
func (b Board) PieceCount() int {
	n := 0
	for _, p := range b.cells {
		if !p.IsZero() {
			n++
		}
	}
	return n
}

// FindGeneral locates a color's general; false once it has been captured.
func (b Board) FindGeneral(c Color) (Position, bool) {
	// generals never leave their palace, scan only those 9 squares
	rows := [3]int{7, 8, 9}
	if c == Black {
		rows = [3]int{0, 1, 2}
	}
	for _, r := range rows {
		for col := 3; col <= 5; col++ {
			p := b.cells[r*Cols+col]
			if p.Type == General && p.Color == c {
				return Pos(r, col), true
			}
		}
	}
	// boards built through SetPiece may put a general anywhere
	for i, p := range b.cells {
		if p.Type == General && p.Color == c {
			return Position{Row: i / Cols, Col: i % Cols}, true
		}
	}
	return Position{}, false
}

// CountPiecesBetween counts occupied squares strictly between a and c on a
// shared rank or file.
func (b Board) CountPiecesBetween(a, c Position) (int, error) {
	if !a.Valid() || !c.Valid() {
		return 0, ErrOffBoard
	}
	if a.Row != c.Row && a.Col != c.Col {
		return 0, fmt.Errorf("%w: %s %s", ErrNotAligned, a, c)
	}
	return b.between(a, c), nil
}

// between assumes a and c are aligned.
func (b Board) between(a, c Position) int {
	dr, dc := sign(c.Row-a.Row), sign(c.Col-a.Col)
	n := 0
	for r, col := a.Row+dr, a.Col+dc; r != c.Row || col != c.Col; r, col = r+dr, col+dc {
		if !b.cells[r*Cols+col].IsZero() {
			n++
		}
	}
	return n
}

// FEN encodes the placement part of a Xiangqi FEN, starting at row 0.
func (b Board) FEN() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for c := 0; c < Cols; c++ {
			p := b.cells[r*Cols+c]
			if p.IsZero() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.Letter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}
	return sb.String()
}

// ParseFEN reads a placement string produced by FEN. Trailing fields
// (side to move, counters) are ignored.
func ParseFEN(s string) (Board, error) {
	var b Board
	placement := strings.TrimSpace(s)
	if i := strings.IndexByte(placement, ' '); i >= 0 {
		placement = placement[:i]
	}
	ranks := strings.Split(placement, "/")
	if len(ranks) != Rows {
		return b, fmt.Errorf("%w: want %d ranks, got %d", ErrBadFEN, Rows, len(ranks))
	}
	for r, rank := range ranks {
		col := 0
		for i := 0; i < len(rank); i++ {
			ch := rank[i]
			if ch >= '1' && ch <= '9' {
				col += int(ch - '0')
				continue
			}
			p, ok := pieceFromLetter(ch)
			if !ok {
				return Board{}, fmt.Errorf("%w: unknown piece %q", ErrBadFEN, ch)
			}
			if col >= Cols {
				return Board{}, fmt.Errorf("%w: rank %d too long", ErrBadFEN, r)
			}
			var err error
			if b, err = b.SetPiece(Pos(r, col), p); err != nil {
				return Board{}, fmt.Errorf("%w: %v", ErrBadFEN, err)
			}
			col++
		}
		if col != Cols {
			return Board{}, fmt.Errorf("%w: rank %d has %d files", ErrBadFEN, r, col)
		}
	}
	return b, nil
}

// String draws the board for logs and test failures.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		fmt.Fprintf(&sb, "%d ", Rows-1-r)
		for c := 0; c < Cols; c++ {
			sb.WriteByte(b.cells[r*Cols+c].Letter())
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  abcdefghi")
	return sb.String()
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
