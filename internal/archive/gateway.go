package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 128
	saveTimeout      = 5 * time.Second
)

// Notifier is told about every stored game.
type Notifier interface {
	GameFinished(ctx context.Context, rec *domain.GameRecord) error
}

// Gateway hands finished games to storage off the gameplay path. Each record
// is written at most once; failures are logged and dropped.
type Gateway struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger

	mu     sync.Mutex
	queue  chan domain.GameRecord
	closed bool
	done   chan struct{}
}

func NewGateway(repo Repository, notifier Notifier, queueSize int, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	g := &Gateway{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		queue:    make(chan domain.GameRecord, queueSize),
		done:     make(chan struct{}),
	}
	go g.run()
	return g
}

// Submit enqueues rec without blocking. A full or closed queue drops it.
func (g *Gateway) Submit(rec domain.GameRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		g.logger.Warn("archive_submit_after_close", zap.String("game_id", rec.ID), zap.String("room_id", rec.RoomID))
		return
	}
	select {
	case g.queue <- rec:
	default:
		g.logger.Error("archive_queue_full", zap.String("game_id", rec.ID), zap.String("room_id", rec.RoomID))
	}
}

// Close stops accepting records and waits for the queue to drain or ctx to end.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.queue)
	}
	g.mu.Unlock()

	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) run() {
	defer close(g.done)
	for rec := range g.queue {
		g.store(rec)
	}
}

func (g *Gateway) store(rec domain.GameRecord) {
	log := g.logger.With(zap.String("game_id", rec.ID), zap.String("room_id", rec.RoomID))
	if err := Annotate(&rec); err != nil {
		log.Warn("archive_replay_error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if g.repo != nil {
		err := g.repo.SaveGame(ctx, &rec)
		switch {
		case errors.Is(err, ErrDuplicateGame):
			log.Warn("archive_duplicate")
			return
		case err != nil:
			log.Error("archive_save_error", zap.Error(err))
			return
		}
	}
	log.Info("archive_saved",
		zap.String("outcome", rec.Outcome),
		zap.String("reason", rec.Reason),
		zap.Int("plies", len(rec.MovesSAN)),
		zap.String("eco", rec.ECOCode),
	)

	if g.notifier != nil {
		if err := g.notifier.GameFinished(ctx, &rec); err != nil {
			log.Warn("archive_notify_error", zap.Error(err))
		}
	}
}
