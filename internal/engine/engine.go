package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

var (
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrNoLegalMoves      = errors.New("no legal moves")
)

// SearchInfo describes how a move was chosen.
type SearchInfo struct {
	Difficulty Difficulty
	Depth      int // deepest completed iteration, 0 if none completed
	Nodes      int
	Score      int
	Elapsed    time.Duration
}

// Engine is the computer opponent. It is stateless between calls and safe for
// concurrent use by many rooms.
type Engine struct {
	rules   xiangqi.Rules
	presets map[Difficulty]DifficultyPreset
	logger  *zap.Logger
}

// New builds an Engine. presets may be nil to use the embedded defaults.
func New(rules xiangqi.Rules, presets map[Difficulty]DifficultyPreset, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presets == nil {
		var err error
		if presets, err = LoadPresets(defaultPresetsYAML); err != nil {
			return nil, err
		}
	}
	for _, d := range difficultyOrder {
		if _, ok := presets[d]; !ok {
			return nil, fmt.Errorf("preset %s missing", d)
		}
	}
	return &Engine{rules: rules, presets: presets, logger: logger}, nil
}

func (e *Engine) Preset(d Difficulty) (DifficultyPreset, error) {
	p, ok := e.presets[d]
	if !ok {
		return DifficultyPreset{}, fmt.Errorf("%w: %q", ErrUnknownDifficulty, d)
	}
	return p, nil
}

// ChooseMove picks a legal move for color. With a fixed board, color and
// preset the result is reproducible as long as the wall-clock budget is not
// what stops the search.
func (e *Engine) ChooseMove(ctx context.Context, b xiangqi.Board, color xiangqi.Color, d Difficulty) (xiangqi.Move, SearchInfo, error) {
	p, err := e.Preset(d)
	if err != nil {
		return xiangqi.Move{}, SearchInfo{}, err
	}
	limits, err := BuildLimits(p)
	if err != nil {
		return xiangqi.Move{}, SearchInfo{}, err
	}
	return e.Search(ctx, b, color, limits, d)
}

// Search runs with explicit limits. d is only recorded in SearchInfo.
func (e *Engine) Search(ctx context.Context, b xiangqi.Board, color xiangqi.Color, limits SearchLimits, d Difficulty) (xiangqi.Move, SearchInfo, error) {
	moves := e.rules.LegalMoves(b, color)
	if len(moves) == 0 {
		return xiangqi.Move{}, SearchInfo{Difficulty: d}, ErrNoLegalMoves
	}
	start := time.Now()
	s := &searcher{ctx: ctx, rules: e.rules, limits: limits}
	if limits.MoveTime > 0 {
		s.deadline = start.Add(limits.MoveTime)
	}
	if dl, ok := ctx.Deadline(); ok && (s.deadline.IsZero() || dl.Before(s.deadline)) {
		s.deadline = dl
	}

	res := s.searchRoot(b, color, moves)
	info := SearchInfo{
		Difficulty: d,
		Depth:      res.depth,
		Nodes:      s.nodes,
		Score:      res.score,
		Elapsed:    time.Since(start),
	}
	e.logger.Debug("engine_search",
		zap.String("difficulty", string(d)),
		zap.String("color", color.String()),
		zap.String("move", res.move.ICCS()),
		zap.Int("depth", info.Depth),
		zap.Int("nodes", info.Nodes),
		zap.Int("score", info.Score),
		zap.Duration("elapsed", info.Elapsed),
		zap.Bool("aborted", s.aborted),
	)
	return res.move, info, nil
}
