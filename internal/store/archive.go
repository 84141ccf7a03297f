package store

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long an archived room stays readable.
const DefaultTTL = 24 * time.Hour

// Archive keeps recent room snapshots for lookup after a room has been
// dropped from memory. It is a short-lived cache, not game history.
type Archive interface {
	Save(ctx context.Context, snap room.Snapshot) error
	// Load returns nil, nil when the room is unknown or expired.
	Load(ctx context.Context, id string) (*room.Snapshot, error)
	RoomsForUser(ctx context.Context, userID string) ([]string, error)
	Close() error
}

func roomKey(id string) string       { return "xq:room:" + strings.TrimSpace(id) }
func idxUserKey(userID string) string { return "xq:index:user:" + strings.TrimSpace(userID) }

// humanIDs lists seated players that are not bots.
func humanIDs(s room.Snapshot) []string {
	var out []string
	for _, seat := range []*room.SeatView{s.Red, s.Black} {
		if seat != nil && !seat.Player.IsBot && strings.TrimSpace(seat.Player.ID) != "" {
			out = append(out, seat.Player.ID)
		}
	}
	return out
}

// ParseRedisURL converts redis://[:password@]host:port[/db] into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
