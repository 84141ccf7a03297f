package room

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/engine"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

// ManagerConfig carries what every room created by a Manager shares.
type ManagerConfig struct {
	Rules          xiangqi.Rules
	Bot            MoveChooser
	Broadcaster    Broadcaster
	AbandonTimeout time.Duration
	TickInterval   time.Duration
	// Linger keeps finished rooms reachable for late readers.
	Linger   time.Duration
	MaxRooms int
	// OnFinish runs once per finished game on its own goroutine. Close waits
	// for running hooks.
	OnFinish func(report domain.GameReport, snap Snapshot)
	BotDelay func(engine.DifficultyPreset) time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

// CreateOptions is the room-create request.
type CreateOptions struct {
	Name               string
	TimeControlSeconds int
	Private            bool
	BotDifficulty      engine.Difficulty
}

type entry struct {
	room   *Room
	seq    uint64
	linger *time.Timer
}

// Manager is the registry of live rooms. Rooms run independently; the
// manager lock only guards the index.
type Manager struct {
	cfg    ManagerConfig
	logger *zap.Logger

	mu     sync.RWMutex
	rooms  map[string]*entry
	seq    uint64
	closed bool

	hooks sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Linger <= 0 {
		cfg.Linger = 5 * time.Minute
	}
	return &Manager{cfg: cfg, logger: cfg.Logger, rooms: make(map[string]*entry)}
}

// Create opens a room hosted by host, who takes the red seat. The host is
// CONNECTING until it joins over a socket; a host that never does is
// timed out like a disconnect, which frees the slot.
func (m *Manager) Create(host domain.Player, opts CreateOptions) (*Room, error) {
	if opts.BotDifficulty != "" {
		d, err := engine.ParseDifficulty(string(opts.BotDifficulty))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
		opts.BotDifficulty = d
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = host.DisplayName + "'s room"
	}
	cfg := m.roomConfig(name, opts.TimeControlSeconds, opts.Private)
	cfg.BotDifficulty = opts.BotDifficulty
	cfg.AwaitHost = true
	return m.register(func() (*Room, error) { return New(cfg, host) })
}

// OpenPairing opens a room for a matchmaking pair. red is the first-joined player.
func (m *Manager) OpenPairing(red, black domain.Player, timeControlSeconds int) (*Room, error) {
	cfg := m.roomConfig(red.DisplayName+" vs "+black.DisplayName, timeControlSeconds, false)
	return m.register(func() (*Room, error) { return NewPaired(cfg, red, black) })
}

func (m *Manager) roomConfig(name string, tc int, private bool) Config {
	return Config{
		ID:                 uuid.NewString(),
		Name:               name,
		TimeControlSeconds: tc,
		Private:            private,
		Rules:              m.cfg.Rules,
		AbandonTimeout:     m.cfg.AbandonTimeout,
		TickInterval:       m.cfg.TickInterval,
		Bot:                m.cfg.Bot,
		BotDelay:           m.cfg.BotDelay,
		Broadcaster:        m.cfg.Broadcaster,
		OnFinish:           m.finished,
		OnClose:            m.forget,
		Now:                m.cfg.Now,
		Logger:             m.logger,
	}
}

func (m *Manager) register(open func() (*Room, error)) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrRoomClosed
	}
	if m.cfg.MaxRooms > 0 && len(m.rooms) >= m.cfg.MaxRooms {
		return nil, ErrTooManyRooms
	}
	r, err := open()
	if err != nil {
		return nil, err
	}
	m.seq++
	m.rooms[r.ID()] = &entry{room: r, seq: m.seq}
	return r, nil
}

// finished runs on the room goroutine.
func (m *Manager) finished(report domain.GameReport, snap Snapshot) {
	m.mu.Lock()
	if e, ok := m.rooms[report.RoomID]; ok && e.linger == nil && !m.closed {
		id := report.RoomID
		e.linger = time.AfterFunc(m.cfg.Linger, func() { m.expire(id) })
	}
	m.mu.Unlock()
	if m.cfg.OnFinish != nil {
		m.hooks.Add(1)
		go func() {
			defer m.hooks.Done()
			m.cfg.OnFinish(report, snap)
		}()
	}
}

func (m *Manager) expire(id string) {
	m.mu.RLock()
	e, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		e.room.Close()
	}
}

// forget runs on the room goroutine once it stops.
func (m *Manager) forget(id string) {
	m.mu.Lock()
	if e, ok := m.rooms[id]; ok {
		if e.linger != nil {
			e.linger.Stop()
		}
		delete(m.rooms, id)
	}
	m.mu.Unlock()
	m.logger.Debug("room_forget", zap.String("room_id", id))
}

func (m *Manager) Get(id string) (*Room, error) {
	m.mu.RLock()
	e, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return e.room, nil
}

// Join seats player in room id.
func (m *Manager) Join(id string, player domain.Player) (Snapshot, error) {
	r, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := r.Join(player)
	if errors.Is(err, ErrRoomClosed) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return snap, err
}

// List returns public rooms that are not finished, oldest first.
func (m *Manager) List() []Summary {
	type row struct {
		seq uint64
		s   Snapshot
	}
	m.mu.RLock()
	rows := make([]row, 0, len(m.rooms))
	for _, e := range m.rooms {
		rows = append(rows, row{seq: e.seq, s: e.room.Snapshot()})
	}
	m.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		if r.s.Private || r.s.Status == StatusFinished {
			continue
		}
		out = append(out, r.s.Summary())
	}
	return out
}

// RoomsFor returns live rooms where playerID holds a seat.
func (m *Manager) RoomsFor(playerID string) []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for _, e := range m.rooms {
		s := e.room.Snapshot()
		if s.Status != StatusFinished && s.Seated(playerID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Close stops every room and waits for OnFinish hooks. Further creates fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for _, e := range m.rooms {
		if e.linger != nil {
			e.linger.Stop()
		}
		rooms = append(rooms, e.room)
	}
	m.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
	m.hooks.Wait()
}
