package room

import (
	"sync"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
	"github.com/park285/cheese-chess-rooms/internal/clock"
	"github.com/park285/cheese-chess-rooms/internal/game"
)

// Room owns one game session and its connections. Every session call and
// every member send happens under mu.
type Room struct {
	id        string
	createdAt time.Time

	mu      sync.Mutex
	session *game.Session
	members []*Member
	closed  bool
}

func (rm *Room) ID() string { return rm.id }

// Do runs fn with the room locked. It returns ErrRoomClosed once the last
// member has left.
func (rm *Room) Do(fn func(tx *Tx)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return ErrRoomClosed
	}
	fn(&Tx{rm: rm})
	return nil
}

// Info snapshots the room.
func (rm *Room) Info() Info {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.infoLocked()
}

func (rm *Room) infoLocked() Info {
	return Info{
		ID:        rm.id,
		Players:   len(rm.members),
		State:     stateOf(rm.session),
		Moves:     rm.session.MoveCount(),
		CreatedAt: rm.createdAt,
	}
}

func stateOf(s *game.Session) State {
	if s.Result().Over() {
		return StateFinished
	}
	switch s.ClockState() {
	case clock.PreStart:
		return StatePreStart
	case clock.Running:
		return StatePlaying
	}
	return StateWaiting
}

func (rm *Room) member(connID string) (*Member, int) {
	for i, m := range rm.members {
		if m.ConnID == connID {
			return m, i
		}
	}
	return nil, -1
}

// Tx is the locked view of a room handed to Do callbacks. It must not be
// retained after the callback returns.
type Tx struct {
	rm *Room
}

func (tx *Tx) RoomID() string         { return tx.rm.id }
func (tx *Tx) Session() *game.Session { return tx.rm.session }
func (tx *Tx) Count() int             { return len(tx.rm.members) }

func (tx *Tx) Member(connID string) (*Member, bool) {
	m, _ := tx.rm.member(connID)
	return m, m != nil
}

// Members returns the members in join order.
func (tx *Tx) Members() []*Member {
	out := make([]*Member, len(tx.rm.members))
	copy(out, tx.rm.members)
	return out
}

// SendTo queues v for one connection. Unknown ids are ignored.
func (tx *Tx) SendTo(connID string, v any) bool {
	if m, _ := tx.rm.member(connID); m != nil {
		return m.Out.Send(v)
	}
	return false
}

// SendColor queues v for the member seated as c.
func (tx *Tx) SendColor(c rules.Color, v any) bool {
	p, ok := tx.rm.session.Seat(c)
	if !ok {
		return false
	}
	return tx.SendTo(p.ID, v)
}

func (tx *Tx) Broadcast(v any) {
	for _, m := range tx.rm.members {
		m.Out.Send(v)
	}
}

func (tx *Tx) BroadcastExcept(connID string, v any) {
	for _, m := range tx.rm.members {
		if m.ConnID != connID {
			m.Out.Send(v)
		}
	}
}
