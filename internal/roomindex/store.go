package roomindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL = 2 * time.Hour
	opTimeout  = 2 * time.Second
)

// Store mirrors live rooms into Redis so other processes can list them.
// It implements room.Observer.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, ttl: ttl, prefix: "chessroom:", logger: logger}
}

// NewStoreFromURL parses a redis:// URL and pings the server.
func NewStoreFromURL(ctx context.Context, url string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStore(rdb, ttl, logger), nil
}

func (s *Store) keyRoom(id string) string { return s.prefix + "room:" + strings.TrimSpace(id) }
func (s *Store) keyLive() string          { return s.prefix + "live" }

func (s *Store) Save(ctx context.Context, info room.Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyRoom(info.ID), raw, s.ttl)
	pipe.ZAdd(ctx, s.keyLive(), redis.Z{Score: float64(info.CreatedAt.UnixMilli()), Member: info.ID})
	pipe.Expire(ctx, s.keyLive(), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Remove(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.keyRoom(id))
	pipe.ZRem(ctx, s.keyLive(), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Load(ctx context.Context, id string) (*room.Info, error) {
	raw, err := s.rdb.Get(ctx, s.keyRoom(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info room.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns live rooms oldest first. Index entries whose room key has
// expired are pruned.
func (s *Store) List(ctx context.Context) ([]room.Info, error) {
	ids, err := s.rdb.ZRange(ctx, s.keyLive(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]room.Info, 0, len(ids))
	var stale []any
	for _, id := range ids {
		info, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if info == nil {
			stale = append(stale, id)
			continue
		}
		out = append(out, *info)
	}
	if len(stale) > 0 {
		_ = s.rdb.ZRem(ctx, s.keyLive(), stale...).Err()
	}
	return out, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) RoomOpened(info room.Info) { s.save("roomindex_open_error", info) }

func (s *Store) RoomUpdated(info room.Info) { s.save("roomindex_update_error", info) }

func (s *Store) RoomClosed(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.Remove(ctx, roomID); err != nil {
		s.logger.Warn("roomindex_close_error", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *Store) save(event string, info room.Info) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.Save(ctx, info); err != nil {
		s.logger.Warn(event, zap.String("room_id", info.ID), zap.Error(err))
	}
}
