package xiangqi

import (
	"fmt"
	"strings"
)

// ICCS renders the move in coordinate notation, e.g. "h2e2".
func (m Move) ICCS() string { return m.From.String() + m.To.String() }

// ParseSquare reads an ICCS square such as "e0".
func ParseSquare(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'i' || s[1] < '0' || s[1] > '9' {
		return Position{}, fmt.Errorf("%w: square %q", ErrBadNotation, s)
	}
	return Pos(Rows-1-int(s[1]-'0'), int(s[0]-'a')), nil
}

// ParseICCS reads "h2e2" or "h2-e2" into source and destination squares.
func ParseICCS(s string) (from, to Position, err error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if len(s) != 4 {
		return Position{}, Position{}, fmt.Errorf("%w: %q", ErrBadNotation, s)
	}
	if from, err = ParseSquare(s[:2]); err != nil {
		return Position{}, Position{}, err
	}
	if to, err = ParseSquare(s[2:]); err != nil {
		return Position{}, Position{}, err
	}
	return from, to, nil
}
