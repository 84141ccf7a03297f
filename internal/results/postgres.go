package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS xq_game_results (
	room_id       TEXT PRIMARY KEY,
	result        TEXT NOT NULL,
	reason        TEXT NOT NULL,
	red_id        TEXT NOT NULL,
	red_name      TEXT NOT NULL,
	black_id      TEXT NOT NULL,
	black_name    TEXT NOT NULL,
	time_control  INTEGER NOT NULL,
	plies         INTEGER NOT NULL,
	bot_difficulty TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS xq_player_ratings (
	player_id      TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL,
	rating         INTEGER NOT NULL,
	games_played   INTEGER NOT NULL,
	wins           INTEGER NOT NULL,
	losses         INTEGER NOT NULL,
	draws          INTEGER NOT NULL,
	streak         INTEGER NOT NULL,
	streak_type    TEXT NOT NULL,
	last_played_at TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

// EnsureSchema creates the tables when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) SaveResult(ctx context.Context, rep domain.GameReport) (bool, error) {
	if strings.TrimSpace(rep.RoomID) == "" {
		return false, ErrNilReport
	}
	duration := rep.EndedAt.Sub(rep.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	const q = `
		INSERT INTO xq_game_results (
			room_id, result, reason,
			red_id, red_name, black_id, black_name,
			time_control, plies, bot_difficulty,
			started_at, ended_at, duration_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (room_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q,
		rep.RoomID, string(rep.Result), string(rep.Reason),
		rep.Red.ID, rep.Red.DisplayName, rep.Black.ID, rep.Black.DisplayName,
		rep.TimeControlSeconds, rep.Plies, rep.BotDifficulty,
		rep.StartedAt, rep.EndedAt, duration,
	)
	if err != nil {
		return false, fmt.Errorf("insert game result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert game result: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) GetRating(ctx context.Context, playerID string) (*domain.PlayerRating, error) {
	const q = `
		SELECT
			player_id,
			display_name,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			last_played_at,
			updated_at,
			created_at
		FROM xq_player_ratings
		WHERE player_id = $1
		LIMIT 1`

	var p domain.PlayerRating
	err := r.db.QueryRowContext(ctx, q, playerID).Scan(
		&p.PlayerID,
		&p.DisplayName,
		&p.Rating,
		&p.GamesPlayed,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.Streak,
		&p.StreakType,
		&p.LastPlayedAt,
		&p.UpdatedAt,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player rating: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) UpsertRating(ctx context.Context, p *domain.PlayerRating) error {
	if p == nil {
		return fmt.Errorf("nil player rating payload")
	}
	const q = `
		INSERT INTO xq_player_ratings (
			player_id,
			display_name,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (player_id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, q,
		p.PlayerID,
		p.DisplayName,
		p.Rating,
		p.GamesPlayed,
		p.Wins,
		p.Losses,
		p.Draws,
		p.Streak,
		p.StreakType,
		p.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player rating: %w", err)
	}
	return nil
}
