package archive

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foolsMate() domain.GameRecord {
	end := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	return domain.GameRecord{
		ID:          "g-1",
		RoomID:      "r1",
		White:       domain.PlayerInfo{UserID: "u1", Name: "alice", Rating: 1400},
		Black:       domain.PlayerInfo{UserID: "u2", Name: "bob \"the\" rook"},
		Outcome:     "black-win",
		Reason:      "checkmate",
		Winner:      "b",
		MovesSAN:    []string{"f3", "e5", "g4", "Qh4#"},
		MovesUCI:    []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		TimeControl: "5+0",
		StartedAt:   end.Add(-time.Minute),
		FinishedAt:  end,
		Duration:    time.Minute,
	}
}

func TestAnnotateBuildsPGN(t *testing.T) {
	rec := foolsMate()
	require.NoError(t, Annotate(&rec))

	assert.Contains(t, rec.PGN, `[Result "0-1"]`)
	assert.Contains(t, rec.PGN, `[Black "bob 'the' rook"]`)
	assert.Contains(t, rec.PGN, `[Date "2024.03.09"]`)
	assert.Contains(t, rec.PGN, `[Termination "checkmate"]`)
	assert.True(t, strings.HasSuffix(rec.PGN, "1. f3 e5 2. g4 Qh4# 0-1"), rec.PGN)
}

func TestAnnotateReportsBadReplay(t *testing.T) {
	rec := foolsMate()
	rec.MovesUCI = []string{"e2e5"}
	err := Annotate(&rec)
	require.Error(t, err)
	assert.Empty(t, rec.ECOCode)
	assert.NotEmpty(t, rec.PGN)
}

func TestPGNResultTokens(t *testing.T) {
	assert.Equal(t, "1-0", pgnResult("white-win"))
	assert.Equal(t, "0-1", pgnResult("black-win"))
	assert.Equal(t, "1/2-1/2", pgnResult("draw"))
	assert.Equal(t, "*", pgnResult("cancelled"))
}

func TestMemoryRepositoryOrdersByFinish(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	older := foolsMate()
	newer := foolsMate()
	newer.ID = "g-2"
	newer.FinishedAt = older.FinishedAt.Add(time.Hour)
	other := foolsMate()
	other.ID = "g-3"
	other.White.UserID, other.Black.UserID = "u7", "u8"

	for _, g := range []domain.GameRecord{older, newer, other} {
		g := g
		require.NoError(t, repo.SaveGame(ctx, &g))
	}
	require.ErrorIs(t, repo.SaveGame(ctx, &older), ErrDuplicateGame)

	games, err := repo.GamesForUser(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "g-2", games[0].ID)
	assert.Equal(t, "g-1", games[1].ID)

	games, err = repo.GamesForUser(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, games, 1)

	games[0].MovesSAN[0] = "mutated"
	again, _ := repo.GamesForUser(ctx, "u1", 1)
	assert.Equal(t, "f3", again[0].MovesSAN[0])

	none, err := repo.GamesForUser(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

type failingRepo struct {
	Repository
	calls int
	mu    sync.Mutex
}

func (f *failingRepo) SaveGame(context.Context, *domain.GameRecord) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("db down")
}

type countingNotifier struct {
	mu   sync.Mutex
	recs []*domain.GameRecord
}

func (n *countingNotifier) GameFinished(_ context.Context, rec *domain.GameRecord) error {
	n.mu.Lock()
	n.recs = append(n.recs, rec)
	n.mu.Unlock()
	return nil
}

func TestGatewayStoresAndNotifies(t *testing.T) {
	repo := NewMemoryRepository()
	note := &countingNotifier{}
	gw := NewGateway(repo, note, 4, nil)

	gw.Submit(foolsMate())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, gw.Close(ctx))

	games, err := repo.GamesForUser(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.NotEmpty(t, games[0].PGN)
	require.Len(t, note.recs, 1)
	assert.Equal(t, "g-1", note.recs[0].ID)

	// after close, submissions are dropped without panicking
	gw.Submit(foolsMate())
}

func TestGatewaySaveFailureIsNotRetried(t *testing.T) {
	repo := &failingRepo{}
	note := &countingNotifier{}
	gw := NewGateway(repo, note, 4, nil)
	gw.Submit(foolsMate())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, gw.Close(ctx))
	assert.Equal(t, 1, repo.calls)
	assert.Empty(t, note.recs)
}
