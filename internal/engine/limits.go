package engine

import (
	"fmt"
	"time"
)

// SearchLimits bounds one ChooseMove call. Zero fields are unlimited, but at
// least one of Depth or MoveTime is always set by BuildLimits.
type SearchLimits struct {
	Depth    int
	NodeCap  int
	MoveTime time.Duration
}

func BuildLimits(p DifficultyPreset) (SearchLimits, error) {
	if err := ValidatePreset(p); err != nil {
		return SearchLimits{}, err
	}
	l := SearchLimits{Depth: p.Depth, NodeCap: p.NodeCap}
	if p.MoveTimeMillis > 0 {
		l.MoveTime = time.Duration(p.MoveTimeMillis) * time.Millisecond
	}
	if l.Depth == 0 && l.MoveTime == 0 {
		return SearchLimits{}, fmt.Errorf("preset %s does not define search limits", p.Name)
	}
	return l, nil
}

func (l SearchLimits) String() string {
	return fmt.Sprintf("depth=%d nodes=%d movetime=%s", l.Depth, l.NodeCap, l.MoveTime)
}
