package matchmaking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"go.uber.org/zap"
)

// RoomOpener creates the room for a fresh pairing and returns its id. It runs
// while the queue is locked and must not call back into the queue.
type RoomOpener func(ctx context.Context, red, black Entry) (string, error)

// Notifier receives queue events. Calls happen after the queue lock is released.
type Notifier interface {
	Queued(e Entry)
	Paired(p Pairing)
}

type Option func(*Queue)

// WithTimeControls restricts joins to the listed time controls.
func WithTimeControls(tcs []int) Option {
	return func(q *Queue) {
		for _, tc := range tcs {
			q.allowed[tc] = true
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue pairs players FIFO within a time-control bucket. A single mutex
// serializes join, pair and leave so no entry is ever paired twice.
type Queue struct {
	mu       sync.Mutex
	buckets  map[int][]Entry
	byPlayer map[string]int // player id -> time control
	allowed  map[int]bool   // empty means any

	open   RoomOpener
	notify Notifier
	now    func() time.Time
	logger *zap.Logger
}

func New(open RoomOpener, notify Notifier, opts ...Option) *Queue {
	q := &Queue{
		buckets:  make(map[int][]Entry),
		byPlayer: make(map[string]int),
		allowed:  make(map[int]bool),
		open:     open,
		notify:   notify,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Join enqueues player or, when someone with the same time control waits
// already, pairs them immediately. A nil Pairing means the player waits.
func (q *Queue) Join(ctx context.Context, player domain.Player, sessionID string, timeControlSeconds int) (*Pairing, error) {
	if strings.TrimSpace(player.ID) == "" || timeControlSeconds < 0 {
		return nil, ErrInvalidArgs
	}
	entry := Entry{Player: player, SessionID: sessionID, TimeControlSeconds: timeControlSeconds}

	q.mu.Lock()
	if len(q.allowed) > 0 && !q.allowed[timeControlSeconds] {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %ds", ErrUnsupportedTimeControl, timeControlSeconds)
	}
	if _, ok := q.byPlayer[player.ID]; ok {
		q.mu.Unlock()
		return nil, ErrAlreadyQueued
	}
	entry.EnqueuedAt = q.now()

	bucket := q.buckets[timeControlSeconds]
	if len(bucket) == 0 {
		q.buckets[timeControlSeconds] = append(bucket, entry)
		q.byPlayer[player.ID] = timeControlSeconds
		size := len(q.buckets[timeControlSeconds])
		q.mu.Unlock()

		q.logger.Info("queue_join",
			zap.String("player_id", player.ID),
			zap.Int("time_control", timeControlSeconds),
			zap.Int("bucket_size", size),
		)
		if q.notify != nil {
			q.notify.Queued(entry)
		}
		return nil, nil
	}

	head := bucket[0]
	q.popHead(timeControlSeconds)
	roomID, err := q.open(ctx, head, entry)
	if err != nil {
		// put the waiting player back where they were
		q.buckets[timeControlSeconds] = append([]Entry{head}, q.buckets[timeControlSeconds]...)
		q.byPlayer[head.Player.ID] = timeControlSeconds
		q.mu.Unlock()
		q.logger.Error("queue_pair_error",
			zap.String("red_id", head.Player.ID),
			zap.String("black_id", player.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("open room: %w", err)
	}
	q.mu.Unlock()

	p := &Pairing{RoomID: roomID, Red: head, Black: entry}
	q.logger.Info("queue_pair",
		zap.String("room_id", roomID),
		zap.String("red_id", head.Player.ID),
		zap.String("black_id", player.ID),
		zap.Int("time_control", timeControlSeconds),
		zap.Duration("waited", entry.EnqueuedAt.Sub(head.EnqueuedAt)),
	)
	if q.notify != nil {
		q.notify.Paired(*p)
	}
	return p, nil
}

// popHead removes the first entry of a bucket. Caller holds mu.
func (q *Queue) popHead(tc int) {
	bucket := q.buckets[tc]
	delete(q.byPlayer, bucket[0].Player.ID)
	if len(bucket) == 1 {
		delete(q.buckets, tc)
		return
	}
	q.buckets[tc] = append([]Entry(nil), bucket[1:]...)
}

// Leave removes a waiting player. Leaving after pairing, or twice, is a no-op.
func (q *Queue) Leave(playerID string) bool {
	return q.remove(playerID, "")
}

// LeaveSession removes the player only if they were queued from sessionID, so
// a closing tab does not dequeue the same user queued from another tab.
func (q *Queue) LeaveSession(playerID, sessionID string) bool {
	return q.remove(playerID, sessionID)
}

func (q *Queue) remove(playerID, sessionID string) bool {
	q.mu.Lock()
	tc, ok := q.byPlayer[playerID]
	if !ok {
		q.mu.Unlock()
		return false
	}
	bucket := q.buckets[tc]
	idx := -1
	for i, e := range bucket {
		if e.Player.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 || (sessionID != "" && bucket[idx].SessionID != sessionID) {
		q.mu.Unlock()
		return false
	}
	rest := append(append([]Entry(nil), bucket[:idx]...), bucket[idx+1:]...)
	if len(rest) == 0 {
		delete(q.buckets, tc)
	} else {
		q.buckets[tc] = rest
	}
	delete(q.byPlayer, playerID)
	q.mu.Unlock()

	q.logger.Info("queue_leave", zap.String("player_id", playerID), zap.Int("time_control", tc))
	return true
}

// Waiting reports whether the player is queued and for which time control.
func (q *Queue) Waiting(playerID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tc, ok := q.byPlayer[playerID]
	return tc, ok
}

// BucketSize is the number of players waiting for a time control.
type BucketSize struct {
	TimeControlSeconds int `json:"timeControlSeconds"`
	Waiting            int `json:"waiting"`
}

// Snapshot lists non-empty buckets ordered by time control.
func (q *Queue) Snapshot() []BucketSize {
	q.mu.Lock()
	out := make([]BucketSize, 0, len(q.buckets))
	for tc, b := range q.buckets {
		out = append(out, BucketSize{TimeControlSeconds: tc, Waiting: len(b)})
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TimeControlSeconds < out[j].TimeControlSeconds })
	return out
}
