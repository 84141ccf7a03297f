package engine

import (
	"context"
	"sort"
	"time"

	"github.com/park285/cheese-xiangqi/internal/xiangqi"
)

const (
	mateScore = 1_000_000
	infinity  = mateScore + 1
	// how often (in nodes) the wall clock and ctx are polled
	pollEvery = 1024
)

type searcher struct {
	ctx      context.Context
	rules    xiangqi.Rules
	limits   SearchLimits
	deadline time.Time
	nodes    int
	aborted  bool
}

func (s *searcher) stop() bool {
	if s.aborted {
		return true
	}
	if s.limits.NodeCap > 0 && s.nodes >= s.limits.NodeCap {
		s.aborted = true
		return true
	}
	if s.nodes%pollEvery == 0 {
		if !s.deadline.IsZero() && time.Now().After(s.deadline) {
			s.aborted = true
		} else if s.ctx.Err() != nil {
			s.aborted = true
		}
	}
	return s.aborted
}

// orderMoves puts captures first, most valuable victim then least valuable
// attacker. The sort is stable so equal moves keep generation order.
func orderMoves(moves []xiangqi.Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		vi, vj := captureKey(moves[i]), captureKey(moves[j])
		return vi > vj
	})
}

func captureKey(m xiangqi.Move) int {
	if !m.IsCapture() {
		return 0
	}
	return PieceValue(m.Captured.Type)*16 - PieceValue(m.Piece.Type)/100
}

// negamax returns the score of b for color to move. Having no legal move
// loses (checkmate and stalemate alike); nearer losses score lower.
func (s *searcher) negamax(b xiangqi.Board, color xiangqi.Color, depth, alpha, beta, ply int) int {
	s.nodes++
	if s.stop() {
		return 0
	}
	if _, ok := b.FindGeneral(color); !ok {
		return -mateScore + ply
	}
	moves := s.rules.LegalMoves(b, color)
	if len(moves) == 0 {
		return -mateScore + ply
	}
	if depth == 0 {
		return Evaluate(b, color)
	}
	orderMoves(moves)
	best := -infinity
	for _, m := range moves {
		score := -s.negamax(b.ApplyMove(m), color.Opponent(), depth-1, -beta, -alpha, ply+1)
		if s.aborted {
			return 0
		}
		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}
	return best
}

// rootResult is the outcome of one completed iteration.
type rootResult struct {
	move  xiangqi.Move
	score int
	depth int
}

// searchRoot runs iterative deepening. Only fully completed iterations are
// used, so a node-capped search is reproducible.
func (s *searcher) searchRoot(b xiangqi.Board, color xiangqi.Color, moves []xiangqi.Move) rootResult {
	orderMoves(moves)
	result := rootResult{move: moves[0], score: -infinity}

	maxDepth := s.limits.Depth
	if maxDepth <= 0 {
		maxDepth = 64
	}
	for depth := 1; depth <= maxDepth; depth++ {
		alpha := -infinity
		var bestMove xiangqi.Move
		bestScore := -infinity
		for _, m := range moves {
			score := -s.negamax(b.ApplyMove(m), color.Opponent(), depth-1, -infinity, -alpha, 1)
			if s.aborted {
				break
			}
			// strict > keeps the first move among equals
			if score > bestScore {
				bestScore, bestMove = score, m
			}
			if score > alpha {
				alpha = score
			}
		}
		if s.aborted {
			break
		}
		result = rootResult{move: bestMove, score: bestScore, depth: depth}
		if bestScore >= mateScore-64 {
			break
		}
		// previous best goes first next iteration
		moves = promote(moves, bestMove)
	}
	return result
}

func promote(moves []xiangqi.Move, best xiangqi.Move) []xiangqi.Move {
	out := make([]xiangqi.Move, 0, len(moves))
	out = append(out, best)
	for _, m := range moves {
		if m != best {
			out = append(out, m)
		}
	}
	return out
}
