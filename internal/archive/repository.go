package archive

import (
	"context"
	"errors"

	"github.com/park285/cheese-chess-rooms/internal/domain"
)

var ErrDuplicateGame = errors.New("game already archived")

// Repository stores finished games.
type Repository interface {
	SaveGame(ctx context.Context, rec *domain.GameRecord) error
	// GamesForUser returns games where userID played either color, most
	// recent first.
	GamesForUser(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error)
	Close() error
}

const defaultHistoryLimit = 20
