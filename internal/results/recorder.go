package results

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"go.uber.org/zap"
)

const (
	kFactor       = 24
	DefaultRating = 1200
)

// RatingChange is one player's rating movement from a recorded game.
type RatingChange struct {
	PlayerID string `json:"playerId"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
}

func (c RatingChange) Delta() int { return c.After - c.Before }

// Recorder turns game-over reports into stored results and Elo updates.
type Recorder struct {
	repo          Repository
	defaultRating int
	now           func() time.Time
	logger        *zap.Logger

	// serializes the read-modify-write of ratings
	mu sync.Mutex
}

func NewRecorder(repo Repository, defaultRating int, logger *zap.Logger) *Recorder {
	if defaultRating <= 0 {
		defaultRating = DefaultRating
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, defaultRating: defaultRating, now: time.Now, logger: logger}
}

// rated reports whether a player's rating is tracked. Bots and guests are not.
func rated(p domain.Player) bool {
	return p.ID != "" && !p.IsBot && !p.IsGuest
}

// Record stores rep and updates ratings. Recording the same room twice is a
// no-op and returns no changes.
func (r *Recorder) Record(ctx context.Context, rep domain.GameReport) ([]RatingChange, error) {
	written, err := r.repo.SaveResult(ctx, rep)
	if err != nil {
		return nil, err
	}
	if !written {
		r.logger.Debug("result_duplicate", zap.String("room_id", rep.RoomID))
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	redProfile, err := r.load(ctx, rep.Red)
	if err != nil {
		return nil, err
	}
	blackProfile, err := r.load(ctx, rep.Black)
	if err != nil {
		return nil, err
	}
	redBefore := r.ratingOf(rep.Red, redProfile)
	blackBefore := r.ratingOf(rep.Black, blackProfile)

	redScore := 0.5
	switch rep.Result {
	case domain.ResultRedWins:
		redScore = 1
	case domain.ResultBlackWins:
		redScore = 0
	}
	at := rep.EndedAt
	if at.IsZero() {
		at = r.now()
	}

	var changes []RatingChange
	if redProfile != nil {
		applyResult(redProfile, redScore, blackBefore, at)
		if err := r.repo.UpsertRating(ctx, redProfile); err != nil {
			return nil, err
		}
		changes = append(changes, RatingChange{PlayerID: rep.Red.ID, Before: redBefore, After: redProfile.Rating})
	}
	if blackProfile != nil {
		applyResult(blackProfile, 1-redScore, redBefore, at)
		if err := r.repo.UpsertRating(ctx, blackProfile); err != nil {
			return nil, err
		}
		changes = append(changes, RatingChange{PlayerID: rep.Black.ID, Before: blackBefore, After: blackProfile.Rating})
	}

	fields := []zap.Field{
		zap.String("room_id", rep.RoomID),
		zap.String("result", string(rep.Result)),
		zap.String("reason", string(rep.Reason)),
	}
	for _, c := range changes {
		fields = append(fields, zap.Int("delta_"+c.PlayerID, c.Delta()))
	}
	r.logger.Info("result_recorded", fields...)
	return changes, nil
}

// load returns the stored profile, a fresh one for a new rated player, or
// nil for players that are not rated.
func (r *Recorder) load(ctx context.Context, p domain.Player) (*domain.PlayerRating, error) {
	if !rated(p) {
		return nil, nil
	}
	prof, err := r.repo.GetRating(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load rating %s: %w", p.ID, err)
	}
	if prof == nil {
		now := r.now()
		prof = &domain.PlayerRating{PlayerID: p.ID, Rating: r.defaultRating, CreatedAt: now}
	}
	if p.DisplayName != "" {
		prof.DisplayName = p.DisplayName
	}
	return prof, nil
}

func (r *Recorder) ratingOf(p domain.Player, prof *domain.PlayerRating) int {
	switch {
	case prof != nil:
		return prof.Rating
	case p.Rating > 0:
		return p.Rating
	}
	return r.defaultRating
}

// Rating returns the stored rating for playerID or the default.
func (r *Recorder) Rating(ctx context.Context, playerID string) (int, error) {
	prof, err := r.repo.GetRating(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if prof == nil {
		return r.defaultRating, nil
	}
	return prof.Rating, nil
}

// Profile returns the stored profile or a default one for unknown players.
func (r *Recorder) Profile(ctx context.Context, playerID string) (*domain.PlayerRating, error) {
	prof, err := r.repo.GetRating(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return &domain.PlayerRating{PlayerID: playerID, Rating: r.defaultRating}, nil
	}
	return prof, nil
}

// Expected is the Elo expected score of a player rated a against b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// applyResult updates counters, streak and rating for one game. score is
// 1 for a win, 0.5 for a draw and 0 for a loss.
func applyResult(p *domain.PlayerRating, score float64, opponent int, at time.Time) int {
	prev := p.Rating
	p.GamesPlayed++
	p.LastPlayedAt = at
	p.UpdatedAt = at

	resultType := ""
	switch {
	case score >= 1:
		p.Wins++
		resultType = "win"
	case score <= 0:
		p.Losses++
		resultType = "loss"
	default:
		p.Draws++
		resultType = "draw"
	}
	if p.StreakType == resultType {
		p.Streak++
	} else {
		p.Streak = 1
		p.StreakType = resultType
	}

	next := float64(p.Rating) + kFactor*(score-Expected(p.Rating, opponent))
	p.Rating = int(math.Round(next))
	return p.Rating - prev
}
