package xiangqi

import (
	"fmt"
	"strings"
)

// Color is a side. The zero value means "no side".
type Color int8

const (
	NoColor Color = iota
	Red
	Black
)

func (c Color) Opponent() Color {
	switch c {
	case Red:
		return Black
	case Black:
		return Red
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// ParseColor accepts "red"/"black" (case-insensitive, also "r"/"b").
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return Red, nil
	case "black", "b":
		return Black, nil
	}
	return NoColor, fmt.Errorf("unknown color %q", s)
}

type PieceType int8

const (
	NoPieceType PieceType = iota
	General
	Advisor
	Elephant
	Horse
	Chariot
	Cannon
	Soldier
)

var pieceTypeNames = [...]string{
	NoPieceType: "NONE",
	General:     "GENERAL",
	Advisor:     "ADVISOR",
	Elephant:    "ELEPHANT",
	Horse:       "HORSE",
	Chariot:     "CHARIOT",
	Cannon:      "CANNON",
	Soldier:     "SOLDIER",
}

func (t PieceType) String() string {
	if t < 0 || int(t) >= len(pieceTypeNames) {
		return "UNKNOWN"
	}
	return pieceTypeNames[t]
}

// fenLetters follow the common Xiangqi FEN alphabet (lowercase = black).
var fenLetters = [...]byte{
	General:  'k',
	Advisor:  'a',
	Elephant: 'b',
	Horse:    'n',
	Chariot:  'r',
	Cannon:   'c',
	Soldier:  'p',
}

// Piece is an immutable value. The zero Piece is an empty square.
type Piece struct {
	Type  PieceType
	Color Color
}

// NoPiece marks an empty square.
var NoPiece = Piece{}

func (p Piece) IsZero() bool { return p.Type == NoPieceType }

func (p Piece) String() string {
	if p.IsZero() {
		return "empty"
	}
	return p.Color.String() + " " + p.Type.String()
}

// Letter returns the FEN letter for the piece, uppercase for red.
func (p Piece) Letter() byte {
	if p.IsZero() {
		return '.'
	}
	l := fenLetters[p.Type]
	if p.Color == Red {
		l -= 'a' - 'A'
	}
	return l
}

func pieceFromLetter(l byte) (Piece, bool) {
	color := Black
	if l >= 'A' && l <= 'Z' {
		color = Red
		l += 'a' - 'A'
	}
	for t, fl := range fenLetters {
		if fl != 0 && fl == l {
			return Piece{Type: PieceType(t), Color: color}, true
		}
	}
	return NoPiece, false
}

const (
	Rows = 10
	Cols = 9
)

// Position is a (row, col) point. Row 0 is black's back rank, row 9 red's.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Pos(row, col int) Position { return Position{Row: row, Col: col} }

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < Rows && p.Col >= 0 && p.Col < Cols
}

func (p Position) index() int { return p.Row*Cols + p.Col }

// String renders the ICCS square name (file a..i, rank 0..9 counted from red's side).
func (p Position) String() string {
	if !p.Valid() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return string([]byte{byte('a' + p.Col), byte('0' + (Rows - 1 - p.Row))})
}

// Move is a proposed transition. Captured is the zero Piece for quiet moves.
type Move struct {
	From     Position `json:"from"`
	To       Position `json:"to"`
	Piece    Piece    `json:"piece"`
	Captured Piece    `json:"captured"`
}

func (m Move) IsCapture() bool { return !m.Captured.IsZero() }

func (m Move) String() string {
	s := m.Piece.String() + " " + m.ICCS()
	if m.IsCapture() {
		s += " x " + m.Captured.String()
	}
	return s
}
