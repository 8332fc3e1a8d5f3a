package room

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
	"github.com/park285/cheese-chess-rooms/internal/clock"
	"github.com/park285/cheese-chess-rooms/internal/game"
	"go.uber.org/zap"
)

type Config struct {
	Session      game.Config
	TickInterval time.Duration
}

// Registry maps room ids to live rooms. Lock order: Registry.mu, then Room.mu.
type Registry struct {
	cfg      Config
	archiver game.Archiver
	observer Observer
	logger   *zap.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(cfg Config, archiver game.Archiver, observer Observer, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = clock.DefaultInterval
	}
	return &Registry{
		cfg:      cfg,
		archiver: archiver,
		observer: observer,
		logger:   logger,
		rooms:    make(map[string]*Room),
	}
}

// Join binds m to roomID, creating the room on first use, and seats it.
// It returns the room, the granted color and the member count.
func (r *Registry) Join(roomID string, m *Member, preferred *rules.Color) (*Room, rules.Color, int, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, rules.White, 0, ErrInvalidRoomID
	}

	r.mu.Lock()
	rm, existed := r.rooms[roomID]
	if !existed {
		rm = &Room{
			id:        roomID,
			createdAt: time.Now(),
			session:   game.NewSession(roomID, r.cfg.Session, r.archiver, r.logger),
		}
		r.rooms[roomID] = rm
	}
	rm.mu.Lock()

	if cur, _ := rm.member(m.ConnID); cur != nil {
		info := rm.infoLocked()
		rm.mu.Unlock()
		r.mu.Unlock()
		return rm, cur.color, info.Players, nil
	}

	color, err := rm.session.Join(game.Player{ID: m.ConnID, UserID: m.UserID, Name: m.Name, Rating: m.Rating}, preferred)
	if err != nil || len(rm.members) >= 2 {
		if err == nil {
			rm.session.Leave(m.ConnID)
		}
		rm.mu.Unlock()
		r.mu.Unlock()
		r.logger.Warn("room_join_rejected", zap.String("room_id", roomID), zap.String("conn_id", m.ConnID))
		return nil, rules.White, 0, ErrRoomFull
	}
	m.color = color
	rm.members = append(rm.members, m)
	info := rm.infoLocked()
	rm.mu.Unlock()
	r.mu.Unlock()

	if existed {
		r.observer.RoomUpdated(info)
	} else {
		r.logger.Info("room_opened", zap.String("room_id", roomID))
		r.observer.RoomOpened(info)
	}
	r.logger.Info("room_join",
		zap.String("room_id", roomID),
		zap.String("conn_id", m.ConnID),
		zap.String("color", color.String()),
		zap.Int("players", info.Players),
	)
	return rm, color, info.Players, nil
}

// LeaveResult describes a departure.
type LeaveResult struct {
	Room      *Room
	Color     rules.Color
	Remaining int
	Closed    bool
}

// Leave removes connID from roomID. The last departure stops the clock and
// discards the room.
func (r *Registry) Leave(roomID, connID string) (LeaveResult, error) {
	r.mu.Lock()
	rm := r.rooms[roomID]
	if rm == nil {
		r.mu.Unlock()
		return LeaveResult{}, ErrNotInRoom
	}
	rm.mu.Lock()
	m, idx := rm.member(connID)
	if m == nil {
		rm.mu.Unlock()
		r.mu.Unlock()
		return LeaveResult{}, ErrNotInRoom
	}
	rm.members = append(rm.members[:idx], rm.members[idx+1:]...)
	rm.session.Leave(connID)

	res := LeaveResult{Room: rm, Color: m.color, Remaining: len(rm.members)}
	if res.Remaining == 0 {
		rm.closed = true
		rm.session.Close()
		delete(r.rooms, roomID)
		res.Closed = true
	}
	info := rm.infoLocked()
	rm.mu.Unlock()
	r.mu.Unlock()

	r.logger.Info("room_leave",
		zap.String("room_id", roomID),
		zap.String("conn_id", connID),
		zap.Int("players", res.Remaining),
	)
	if res.Closed {
		r.logger.Info("room_closed", zap.String("room_id", roomID))
		r.observer.RoomClosed(roomID)
	} else {
		r.observer.RoomUpdated(info)
	}
	return res, nil
}

// Get returns the live room for id.
func (r *Registry) Get(roomID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomID]
	return rm, ok
}

// Touch reports the room's current state to the observer.
func (r *Registry) Touch(rm *Room) {
	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return
	}
	info := rm.infoLocked()
	rm.mu.Unlock()
	r.observer.RoomUpdated(info)
}

// StartTicker schedules fn on the room clock. It must be called from inside
// Do. fn runs with the room locked and reports whether the room state
// changed.
func (r *Registry) StartTicker(tx *Tx, fn func(tx *Tx) bool) {
	rm := tx.rm
	rm.session.ScheduleTick(r.cfg.TickInterval, func(ctx context.Context) {
		rm.mu.Lock()
		if ctx.Err() != nil || rm.closed {
			rm.mu.Unlock()
			return
		}
		changed := fn(&Tx{rm: rm})
		info := rm.infoLocked()
		rm.mu.Unlock()
		if changed {
			r.observer.RoomUpdated(info)
		}
	})
}

// List snapshots every live room, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.Unlock()

	out := make([]Info, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Close stops every room clock. Used on shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	closed := make([]string, 0, len(r.rooms))
	for id, rm := range r.rooms {
		rm.mu.Lock()
		rm.closed = true
		rm.session.Close()
		rm.mu.Unlock()
		delete(r.rooms, id)
		closed = append(closed, id)
	}
	r.mu.Unlock()
	for _, id := range closed {
		r.observer.RoomClosed(id)
	}
}
