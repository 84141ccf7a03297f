package results

import (
	"context"
	"errors"

	"github.com/park285/cheese-xiangqi/internal/domain"
)

var ErrNilReport = errors.New("nil game report")

// Repository persists game-over reports and player ratings. The move list
// is never stored.
type Repository interface {
	// SaveResult is idempotent per room id and reports whether a row was written.
	SaveResult(ctx context.Context, rep domain.GameReport) (bool, error)
	// GetRating returns nil, nil for an unknown player.
	GetRating(ctx context.Context, playerID string) (*domain.PlayerRating, error)
	UpsertRating(ctx context.Context, r *domain.PlayerRating) error
	Close() error
}
