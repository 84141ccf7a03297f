package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/park285/cheese-xiangqi/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	queued []Entry
	paired []Pairing
}

func (r *recorder) Queued(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, e)
}

func (r *recorder) Paired(p Pairing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paired = append(r.paired, p)
}

func newTestQueue(t *testing.T, opts ...Option) (*Queue, *recorder) {
	t.Helper()
	rec := &recorder{}
	n := 0
	open := func(ctx context.Context, red, black Entry) (string, error) {
		n++
		return fmt.Sprintf("room-%d", n), nil
	}
	return New(open, rec, opts...), rec
}

func player(id string) domain.Player { return domain.Player{ID: id, DisplayName: id, Rating: 1200} }

func TestJoinPairsFIFOWithFirstAsRed(t *testing.T) {
	q, rec := newTestQueue(t)
	ctx := context.Background()

	p, err := q.Join(ctx, player("a"), "sa", 600)
	if err != nil || p != nil {
		t.Fatalf("first join: pairing=%v err=%v", p, err)
	}
	p, err = q.Join(ctx, player("b"), "sb", 600)
	if err != nil || p == nil {
		t.Fatalf("second join should pair: %v", err)
	}
	if p.Red.Player.ID != "a" || p.Black.Player.ID != "b" {
		t.Fatalf("first-joined must be red: %+v", p)
	}
	if len(rec.paired) != 1 || rec.paired[0].RoomID != p.RoomID {
		t.Fatalf("notifier not told about pairing: %+v", rec.paired)
	}
	if len(rec.queued) != 1 || rec.queued[0].Player.ID != "a" {
		t.Fatalf("queued events = %+v", rec.queued)
	}
	if len(q.Snapshot()) != 0 {
		t.Fatalf("queue should be empty: %+v", q.Snapshot())
	}
}

func TestDifferentTimeControlsDoNotPair(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	if p, _ := q.Join(ctx, player("a"), "sa", 300); p != nil {
		t.Fatalf("unexpected pairing")
	}
	if p, _ := q.Join(ctx, player("b"), "sb", 600); p != nil {
		t.Fatalf("different time controls paired")
	}
	sizes := q.Snapshot()
	if len(sizes) != 2 || sizes[0].TimeControlSeconds != 300 || sizes[1].Waiting != 1 {
		t.Fatalf("sizes = %+v", sizes)
	}
	p, err := q.Join(ctx, player("c"), "sc", 300)
	if err != nil || p == nil || p.Red.Player.ID != "a" {
		t.Fatalf("expected a vs c, got %+v %v", p, err)
	}
}

func TestJoinTwiceRejected(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	if _, err := q.Join(ctx, player("a"), "s1", 600); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := q.Join(ctx, player("a"), "s2", 300); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("expected ErrAlreadyQueued, got %v", err)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	_, _ = q.Join(ctx, player("a"), "sa", 600)
	if !q.Leave("a") {
		t.Fatalf("leave should remove waiting player")
	}
	if q.Leave("a") {
		t.Fatalf("second leave must be a no-op")
	}
	if _, ok := q.Waiting("a"); ok {
		t.Fatalf("player still waiting")
	}

	_, _ = q.Join(ctx, player("b"), "sb", 600)
	_, _ = q.Join(ctx, player("c"), "sc", 600)
	if q.Leave("b") || q.Leave("c") {
		t.Fatalf("leaving after pairing must be a no-op")
	}
}

func TestLeaveSessionOnlyMatchingSession(t *testing.T) {
	q, _ := newTestQueue(t)
	_, _ = q.Join(context.Background(), player("a"), "tab-1", 600)
	if q.LeaveSession("a", "tab-2") {
		t.Fatalf("other session must not dequeue")
	}
	if !q.LeaveSession("a", "tab-1") {
		t.Fatalf("owning session should dequeue")
	}
}

func TestUnsupportedTimeControl(t *testing.T) {
	q, _ := newTestQueue(t, WithTimeControls([]int{600}))
	if _, err := q.Join(context.Background(), player("a"), "sa", 30); !errors.Is(err, ErrUnsupportedTimeControl) {
		t.Fatalf("expected ErrUnsupportedTimeControl, got %v", err)
	}
	if _, err := q.Join(context.Background(), domain.Player{}, "s", 600); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
}

func TestOpenerFailureRequeuesHead(t *testing.T) {
	fail := true
	open := func(ctx context.Context, red, black Entry) (string, error) {
		if fail {
			return "", errors.New("registry full")
		}
		return "room-x", nil
	}
	q := New(open, nil)
	ctx := context.Background()
	_, _ = q.Join(ctx, player("a"), "sa", 600)
	if _, err := q.Join(ctx, player("b"), "sb", 600); err == nil {
		t.Fatalf("expected opener error")
	}
	if _, ok := q.Waiting("a"); !ok {
		t.Fatalf("head should be back in the queue")
	}
	fail = false
	p, err := q.Join(ctx, player("c"), "sc", 600)
	if err != nil || p == nil || p.Red.Player.ID != "a" {
		t.Fatalf("expected a to be paired first, got %+v %v", p, err)
	}
}

func TestConcurrentJoinsNeverDoublePair(t *testing.T) {
	q, rec := newTestQueue(t)
	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p%d", i)
			if _, err := q.Join(context.Background(), player(id), "s"+id, 600); err != nil {
				t.Errorf("join %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	if len(rec.paired) != n/2 {
		t.Fatalf("pairings = %d, want %d", len(rec.paired), n/2)
	}
	seen := map[string]bool{}
	for _, p := range rec.paired {
		for _, id := range []string{p.Red.Player.ID, p.Black.Player.ID} {
			if seen[id] {
				t.Fatalf("player %s paired twice", id)
			}
			seen[id] = true
		}
	}
}
