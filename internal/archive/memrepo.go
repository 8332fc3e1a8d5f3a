package archive

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-chess-rooms/internal/domain"
)

// memrepo keeps games in process. Used when no DATABASE_URL is configured.
type memrepo struct {
	mu     sync.RWMutex
	byID   map[string]*domain.GameRecord
	byUser map[string][]*domain.GameRecord
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byID:   make(map[string]*domain.GameRecord),
		byUser: make(map[string][]*domain.GameRecord),
	}
}

func (m *memrepo) SaveGame(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.ID]; exists {
		return ErrDuplicateGame
	}
	cp := clone(rec)
	m.byID[rec.ID] = cp
	white, black := strings.TrimSpace(rec.White.UserID), strings.TrimSpace(rec.Black.UserID)
	if white != "" {
		m.byUser[white] = append(m.byUser[white], cp)
	}
	if black != "" && black != white {
		m.byUser[black] = append(m.byUser[black], cp)
	}
	return nil
}

func (m *memrepo) GamesForUser(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	m.mu.RLock()
	list := append([]*domain.GameRecord(nil), m.byUser[strings.TrimSpace(userID)]...)
	m.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].FinishedAt.After(list[j].FinishedAt)
	})
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.GameRecord, 0, len(list))
	for _, g := range list {
		out = append(out, clone(g))
	}
	return out, nil
}

func (m *memrepo) Close() error { return nil }

func clone(g *domain.GameRecord) *domain.GameRecord {
	cp := *g
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	return &cp
}
