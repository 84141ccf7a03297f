package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisArchive stores snapshots as JSON under xq:room:<id> with a TTL and
// indexes them per player under xq:index:user:<uid>.
type RedisArchive struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisArchive(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisArchive, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for redis archive")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisArchive{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (a *RedisArchive) Close() error {
	if a == nil || a.rdb == nil {
		return nil
	}
	return a.rdb.Close()
}

func (a *RedisArchive) Save(ctx context.Context, snap room.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", snap.ID, err)
	}
	pipe := a.rdb.TxPipeline()
	pipe.Set(ctx, roomKey(snap.ID), raw, a.ttl)
	for _, uid := range humanIDs(snap) {
		key := idxUserKey(uid)
		pipe.SAdd(ctx, key, snap.ID)
		// index lives as long as the newest room in it
		pipe.Expire(ctx, key, a.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Warn("archive_save_error", zap.String("room_id", snap.ID), zap.Error(err))
		return err
	}
	a.logger.Debug("archive_save", zap.String("room_id", snap.ID), zap.String("status", string(snap.Status)))
	return nil
}

func (a *RedisArchive) Load(ctx context.Context, id string) (*room.Snapshot, error) {
	raw, err := a.rdb.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s room.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &s, nil
}

// RoomsForUser lists archived room ids for a player. Ids whose snapshot
// already expired are pruned from the index.
func (a *RedisArchive) RoomsForUser(ctx context.Context, userID string) ([]string, error) {
	key := idxUserKey(userID)
	ids, err := a.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := a.rdb.Exists(ctx, roomKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = a.rdb.SRem(ctx, key, id).Err()
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
