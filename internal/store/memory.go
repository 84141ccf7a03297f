package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/park285/cheese-xiangqi/internal/room"
)

type memItem struct {
	snap      room.Snapshot
	expiresAt time.Time
}

// MemoryArchive is the in-process fallback used when no Redis is configured.
type MemoryArchive struct {
	mu    sync.Mutex
	items map[string]memItem
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryArchive(ttl time.Duration) *MemoryArchive {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryArchive{items: make(map[string]memItem), ttl: ttl, now: time.Now}
}

func (a *MemoryArchive) Save(_ context.Context, snap room.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[snap.ID] = memItem{snap: snap, expiresAt: a.now().Add(a.ttl)}
	return nil
}

func (a *MemoryArchive) Load(_ context.Context, id string) (*room.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	it, ok := a.items[id]
	if !ok {
		return nil, nil
	}
	if !a.now().Before(it.expiresAt) {
		delete(a.items, id)
		return nil, nil
	}
	s := it.snap
	return &s, nil
}

func (a *MemoryArchive) RoomsForUser(_ context.Context, userID string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	var out []string
	for id, it := range a.items {
		if !now.Before(it.expiresAt) {
			delete(a.items, id)
			continue
		}
		for _, uid := range humanIDs(it.snap) {
			if uid == userID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (a *MemoryArchive) Close() error { return nil }
