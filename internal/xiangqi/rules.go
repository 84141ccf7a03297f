package xiangqi

import "fmt"

// Rules holds the switchable parts of the rule set. The zero value disables
// the face-off rule; use DefaultRules for standard play.
type Rules struct {
	// FlyingGeneral forbids the two generals from facing each other on an
	// open file.
	FlyingGeneral bool
}

func DefaultRules() Rules { return Rules{FlyingGeneral: true} }

// Status is the terminal classification of a position.
type Status int

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
	GeneralCaptured
)

func (s Status) String() string {
	switch s {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case GeneralCaptured:
		return "general-captured"
	default:
		return "ongoing"
	}
}

// Verdict reports whether a position is final and who won it.
// Stalemate counts as a loss for the side that cannot move.
type Verdict struct {
	Status Status
	Winner Color
}

func (v Verdict) Over() bool { return v.Status != Ongoing }

var (
	orthSteps = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	diagSteps = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	// horse jump (dr, dc) with its blocking leg offset
	horseJumps = [8][4]int{
		{-2, -1, -1, 0}, {-2, 1, -1, 0},
		{2, -1, 1, 0}, {2, 1, 1, 0},
		{-1, -2, 0, -1}, {1, -2, 0, -1},
		{-1, 2, 0, 1}, {1, 2, 0, 1},
	}
)

func inPalace(p Position, c Color) bool {
	if p.Col < 3 || p.Col > 5 {
		return false
	}
	if c == Red {
		return p.Row >= 7 && p.Row <= 9
	}
	return p.Row >= 0 && p.Row <= 2
}

// onOwnSide reports whether p lies on c's half of the river.
func onOwnSide(p Position, c Color) bool {
	if c == Red {
		return p.Row >= 5
	}
	return p.Row <= 4
}

func forward(c Color) int {
	if c == Red {
		return -1
	}
	return 1
}

// PseudoLegalMoves generates piece-movement moves for c without the
// check and face-off filters. Order is row-major by source square, then a
// fixed direction order per piece, so callers can rely on it for tie-breaks.
func (r Rules) PseudoLegalMoves(b Board, c Color) []Move {
	moves := make([]Move, 0, 48)
	for i, p := range b.cells {
		if p.IsZero() || p.Color != c {
			continue
		}
		moves = appendPieceMoves(moves, b, Position{Row: i / Cols, Col: i % Cols}, p)
	}
	return moves
}

func appendPieceMoves(dst []Move, b Board, from Position, p Piece) []Move {
	add := func(to Position) {
		if !to.Valid() {
			return
		}
		t := b.at(to)
		if !t.IsZero() && t.Color == p.Color {
			return
		}
		dst = append(dst, Move{From: from, To: to, Piece: p, Captured: t})
	}

	switch p.Type {
	case General:
		for _, d := range orthSteps {
			to := Pos(from.Row+d[0], from.Col+d[1])
			if inPalace(to, p.Color) {
				add(to)
			}
		}
	case Advisor:
		for _, d := range diagSteps {
			to := Pos(from.Row+d[0], from.Col+d[1])
			if inPalace(to, p.Color) {
				add(to)
			}
		}
	case Elephant:
		for _, d := range diagSteps {
			to := Pos(from.Row+2*d[0], from.Col+2*d[1])
			if !to.Valid() || !onOwnSide(to, p.Color) {
				continue
			}
			if !b.at(Pos(from.Row+d[0], from.Col+d[1])).IsZero() {
				continue
			}
			add(to)
		}
	case Horse:
		for _, j := range horseJumps {
			to := Pos(from.Row+j[0], from.Col+j[1])
			if !to.Valid() {
				continue
			}
			if !b.at(Pos(from.Row+j[2], from.Col+j[3])).IsZero() {
				continue
			}
			add(to)
		}
	case Chariot:
		for _, d := range orthSteps {
			for to := Pos(from.Row+d[0], from.Col+d[1]); to.Valid(); to = Pos(to.Row+d[0], to.Col+d[1]) {
				add(to)
				if !b.at(to).IsZero() {
					break
				}
			}
		}
	case Cannon:
		for _, d := range orthSteps {
			screened := false
			for to := Pos(from.Row+d[0], from.Col+d[1]); to.Valid(); to = Pos(to.Row+d[0], to.Col+d[1]) {
				occupied := !b.at(to).IsZero()
				if !screened {
					if occupied {
						screened = true
						continue
					}
					add(to)
					continue
				}
				if occupied {
					add(to)
					break
				}
			}
		}
	case Soldier:
		fwd := forward(p.Color)
		add(Pos(from.Row+fwd, from.Col))
		if !onOwnSide(from, p.Color) {
			add(Pos(from.Row, from.Col-1))
			add(Pos(from.Row, from.Col+1))
		}
	}
	return dst
}

// reaches reports whether piece p standing on from has a pseudo-legal move to
// to. It mirrors appendPieceMoves and is used for attack detection.
func reaches(b Board, from Position, p Piece, to Position) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if t := b.at(to); !t.IsZero() && t.Color == p.Color {
		return false
	}
	dr, dc := to.Row-from.Row, to.Col-from.Col
	switch p.Type {
	case General:
		return inPalace(to, p.Color) && abs(dr)+abs(dc) == 1
	case Advisor:
		return inPalace(to, p.Color) && abs(dr) == 1 && abs(dc) == 1
	case Elephant:
		return abs(dr) == 2 && abs(dc) == 2 && onOwnSide(to, p.Color) &&
			b.at(Pos(from.Row+dr/2, from.Col+dc/2)).IsZero()
	case Horse:
		switch {
		case abs(dr) == 2 && abs(dc) == 1:
			return b.at(Pos(from.Row+dr/2, from.Col)).IsZero()
		case abs(dr) == 1 && abs(dc) == 2:
			return b.at(Pos(from.Row, from.Col+dc/2)).IsZero()
		}
		return false
	case Chariot:
		return (dr == 0 || dc == 0) && b.between(from, to) == 0
	case Cannon:
		if dr != 0 && dc != 0 {
			return false
		}
		if b.at(to).IsZero() {
			return b.between(from, to) == 0
		}
		return b.between(from, to) == 1
	case Soldier:
		if dc == 0 && dr == forward(p.Color) {
			return true
		}
		return dr == 0 && abs(dc) == 1 && !onOwnSide(from, p.Color)
	}
	return false
}

// attacked reports whether any piece of color by has a pseudo-legal move onto
// target. Only squares that could hold an attacker are probed.
func attacked(b Board, target Position, by Color) bool {
	probe := func(from Position) bool {
		if !from.Valid() {
			return false
		}
		p := b.at(from)
		return !p.IsZero() && p.Color == by && reaches(b, from, p, target)
	}

	// orthogonal rays: chariot, general and soldier on the first piece,
	// cannon on the second
	for _, d := range orthSteps {
		seen := 0
		for sq := Pos(target.Row+d[0], target.Col+d[1]); sq.Valid(); sq = Pos(sq.Row+d[0], sq.Col+d[1]) {
			if b.at(sq).IsZero() {
				continue
			}
			if probe(sq) {
				return true
			}
			seen++
			if seen == 2 {
				break
			}
		}
	}
	for _, j := range horseJumps {
		if probe(Pos(target.Row-j[0], target.Col-j[1])) {
			return true
		}
	}
	for _, d := range diagSteps {
		if probe(Pos(target.Row+d[0], target.Col+d[1])) || probe(Pos(target.Row+2*d[0], target.Col+2*d[1])) {
			return true
		}
	}
	return false
}

// InCheck reports whether c's general can be captured by an opposing
// pseudo-legal move. A board without c's general is not "in check".
func (r Rules) InCheck(b Board, c Color) bool {
	g, ok := b.FindGeneral(c)
	if !ok {
		return false
	}
	return attacked(b, g, c.Opponent())
}

// GeneralsFacing reports whether both generals share a file with nothing
// between them.
func GeneralsFacing(b Board) bool {
	rg, ok1 := b.FindGeneral(Red)
	bg, ok2 := b.FindGeneral(Black)
	if !ok1 || !ok2 || rg.Col != bg.Col {
		return false
	}
	return b.between(rg, bg) == 0
}

// safeAfter reports whether c may leave the board in state b.
func (r Rules) safeAfter(b Board, c Color) bool {
	if r.FlyingGeneral && GeneralsFacing(b) {
		return false
	}
	return !r.InCheck(b, c)
}

// LegalMoves filters pseudo-legal moves that leave c's general capturable or
// break the face-off rule.
func (r Rules) LegalMoves(b Board, c Color) []Move {
	pseudo := r.PseudoLegalMoves(b, c)
	legal := pseudo[:0]
	for _, m := range pseudo {
		if r.safeAfter(b.ApplyMove(m), c) {
			legal = append(legal, m)
		}
	}
	return legal
}

func (r Rules) hasLegalMove(b Board, c Color) bool {
	for _, m := range r.PseudoLegalMoves(b, c) {
		if r.safeAfter(b.ApplyMove(m), c) {
			return true
		}
	}
	return false
}

// Validate checks a proposed move for color c and returns the fully
// populated Move. Failures wrap ErrIllegalMove; the board is never touched.
func (r Rules) Validate(b Board, c Color, from, to Position) (Move, error) {
	if !from.Valid() || !to.Valid() {
		return Move{}, fmt.Errorf("%w: square off board", ErrIllegalMove)
	}
	p, ok := b.Get(from)
	if !ok {
		return Move{}, fmt.Errorf("%w: no piece at %s", ErrIllegalMove, from)
	}
	if p.Color != c {
		return Move{}, fmt.Errorf("%w: piece at %s belongs to %s", ErrIllegalMove, from, p.Color)
	}
	var candidate *Move
	for _, m := range appendPieceMoves(nil, b, from, p) {
		if m.To == to {
			mm := m
			candidate = &mm
			break
		}
	}
	if candidate == nil {
		return Move{}, fmt.Errorf("%w: %s cannot move %s-%s", ErrIllegalMove, p.Type, from, to)
	}
	next := b.ApplyMove(*candidate)
	if r.FlyingGeneral && GeneralsFacing(next) {
		return Move{}, fmt.Errorf("%w: generals would face each other", ErrIllegalMove)
	}
	if r.InCheck(next, c) {
		return Move{}, fmt.Errorf("%w: own general left in check", ErrIllegalMove)
	}
	return *candidate, nil
}

// Adjudicate classifies the position with toMove to play.
func (r Rules) Adjudicate(b Board, toMove Color) Verdict {
	if _, ok := b.FindGeneral(Red); !ok {
		return Verdict{Status: GeneralCaptured, Winner: Black}
	}
	if _, ok := b.FindGeneral(Black); !ok {
		return Verdict{Status: GeneralCaptured, Winner: Red}
	}
	if r.hasLegalMove(b, toMove) {
		return Verdict{Status: Ongoing}
	}
	if r.InCheck(b, toMove) {
		return Verdict{Status: Checkmate, Winner: toMove.Opponent()}
	}
	return Verdict{Status: Stalemate, Winner: toMove.Opponent()}
}
