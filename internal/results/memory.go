package results

import (
	"context"
	"sync"

	"github.com/park285/cheese-xiangqi/internal/domain"
)

// MemoryRepository is used when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	reports map[string]domain.GameReport
	ratings map[string]*domain.PlayerRating
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		reports: make(map[string]domain.GameReport),
		ratings: make(map[string]*domain.PlayerRating),
	}
}

func (m *MemoryRepository) SaveResult(_ context.Context, rep domain.GameReport) (bool, error) {
	if rep.RoomID == "" {
		return false, ErrNilReport
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[rep.RoomID]; ok {
		return false, nil
	}
	m.reports[rep.RoomID] = rep
	return true, nil
}

func (m *MemoryRepository) GetRating(_ context.Context, playerID string) (*domain.PlayerRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.ratings[playerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryRepository) UpsertRating(_ context.Context, p *domain.PlayerRating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.ratings[p.PlayerID] = &cp
	return nil
}

// Report returns a saved report, for inspection.
func (m *MemoryRepository) Report(roomID string) (domain.GameReport, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep, ok := m.reports[roomID]
	return rep, ok
}

func (m *MemoryRepository) Close() error { return nil }
