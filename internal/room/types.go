package room

import (
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
)

// Sender is a connection's outbound queue. Send must not block; it reports
// false when the frame was dropped.
type Sender interface {
	Send(v any) bool
}

// Member is one websocket connection bound to a room.
type Member struct {
	ConnID string
	UserID string
	Name   string
	Rating int
	Out    Sender

	color rules.Color
}

func (m *Member) Color() rules.Color { return m.color }

// State is the coarse room lifecycle exposed to observers and listings.
type State string

const (
	StateWaiting  State = "waiting"
	StatePreStart State = "pre-start"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// Info is a lock-free snapshot of a room.
type Info struct {
	ID        string    `json:"roomId"`
	Players   int       `json:"players"`
	State     State     `json:"state"`
	Moves     int       `json:"moves"`
	CreatedAt time.Time `json:"createdAt"`
}

// Observer hooks run after every lock is released.
type Observer interface {
	RoomOpened(info Info)
	RoomUpdated(info Info)
	RoomClosed(roomID string)
}

type nopObserver struct{}

func (nopObserver) RoomOpened(Info)   {}
func (nopObserver) RoomUpdated(Info)  {}
func (nopObserver) RoomClosed(string) {}

// Errors
var (
	ErrInvalidRoomID = errf("room id is required")
	ErrRoomFull      = errf("room already has two players")
	ErrRoomClosed    = errf("room is closed")
	ErrNotInRoom     = errf("connection is not in this room")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error        { return staticErr(s) }
