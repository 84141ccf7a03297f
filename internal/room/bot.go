package room

import (
	"context"
	"strings"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/engine"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

// MoveChooser picks the computer's move. *engine.Engine implements it.
type MoveChooser interface {
	ChooseMove(ctx context.Context, b xiangqi.Board, color xiangqi.Color, d engine.Difficulty) (xiangqi.Move, engine.SearchInfo, error)
	Preset(d engine.Difficulty) (engine.DifficultyPreset, error)
}

// botSearchGrace is added to the preset move time for the hard search deadline.
const botSearchGrace = time.Second

func botPlayer(d engine.Difficulty, p engine.DifficultyPreset) domain.Player {
	return domain.Player{
		ID:          "bot:" + strings.ToLower(string(d)),
		DisplayName: "Computer (" + string(d) + ")",
		Rating:      p.ApproxRating,
		IsBot:       true,
	}
}

// maybeBot starts a search when the side to move is a bot. The search runs
// off the room goroutine so the room keeps serving other actions.
func (r *Room) maybeBot() {
	if r.status != StatusPlaying {
		return
	}
	s := r.seat(r.turn)
	if s == nil || s.bot == "" || r.cfg.Bot == nil {
		return
	}
	ply := len(r.moves)
	if r.botPly == ply {
		return
	}
	r.botPly = ply
	preset, err := r.cfg.Bot.Preset(s.bot)
	if err != nil {
		r.logger.Error("room_bot_preset", zap.String("difficulty", string(s.bot)), zap.Error(err))
		r.botFailed(ply)
		return
	}
	delay := r.botDelay(preset)
	go r.think(ply, r.board, r.turn, s.bot, preset, delay)
}

func (r *Room) botDelay(p engine.DifficultyPreset) time.Duration {
	if r.cfg.BotDelay != nil {
		return r.cfg.BotDelay(p)
	}
	return engine.ResponseDelay(p, r.rng)
}

func (r *Room) think(ply int, b xiangqi.Board, color xiangqi.Color, d engine.Difficulty, p engine.DifficultyPreset, delay time.Duration) {
	start := time.Now()
	budget := time.Duration(p.MoveTimeMillis)*time.Millisecond + botSearchGrace
	ctx, cancel := context.WithTimeout(r.ctx, budget)
	defer cancel()

	m, info, err := r.cfg.Bot.ChooseMove(ctx, b, color, d)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.logger.Warn("room_bot_error", zap.Int("ply", ply), zap.Error(err))
		r.post(func() error {
			r.botFailed(ply)
			return nil
		})
		return
	}
	r.logger.Debug("room_bot_move",
		zap.Int("ply", ply),
		zap.String("move", m.ICCS()),
		zap.Int("depth", info.Depth),
		zap.Int("nodes", info.Nodes),
		zap.Duration("elapsed", info.Elapsed),
	)

	if wait := engine.Remaining(delay, time.Since(start)); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-r.ctx.Done():
			t.Stop()
			return
		}
	}
	r.post(func() error {
		r.applyBotMove(ply, color, m)
		return nil
	})
}

// botFailed retries the search for ply after BotRetry. After maxBotFailures
// consecutive failures the bot forfeits so the room cannot stall.
func (r *Room) botFailed(ply int) {
	if r.botPly != ply {
		return
	}
	r.botPly = -1
	if r.status != StatusPlaying {
		return
	}
	r.botFailures++
	if r.botFailures >= maxBotFailures {
		r.logger.Error("room_bot_forfeit", zap.Int("ply", ply), zap.Int("failures", r.botFailures))
		r.finish(r.turn.Opponent(), domain.ReasonAbandonment)
		return
	}
	time.AfterFunc(r.cfg.BotRetry, func() {
		r.post(func() error {
			if len(r.moves) == ply {
				r.maybeBot()
			}
			return nil
		})
	})
}

// applyBotMove drops replies that no longer match the position they were
// computed for.
func (r *Room) applyBotMove(ply int, color xiangqi.Color, m xiangqi.Move) {
	if r.botPly == ply {
		r.botPly = -1
	}
	if r.status != StatusPlaying || len(r.moves) != ply || r.turn != color {
		return
	}
	now := r.cfg.Now()
	if r.charge(now) {
		return
	}
	valid, err := r.cfg.Rules.Validate(r.board, color, m.From, m.To)
	if err != nil {
		r.logger.Error("room_bot_illegal", zap.String("move", m.ICCS()), zap.Error(err))
		return
	}
	r.botFailures = 0
	r.commit(color, valid, now)
}
