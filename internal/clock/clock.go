package clock

import (
	"context"
	"sync"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
)

const (
	DefaultInitial  = 5 * time.Minute
	DefaultPreStart = 10 * time.Second
	DefaultInterval = time.Second
)

type State uint8

const (
	Idle State = iota
	PreStart
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case PreStart:
		return "pre-start"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

type EventKind uint8

const (
	EventNone EventKind = iota
	EventPreStartExpired
	EventTimeout
)

// Event is what a Tick observed. Loser is set for EventTimeout.
type Event struct {
	Kind  EventKind
	Loser rules.Color
}

type Config struct {
	Initial  time.Duration
	PreStart time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Snapshot struct {
	White    time.Duration
	Black    time.Duration
	Active   rules.Color
	Running  bool
	PreStart time.Duration
	State    State
}

// Clock is a two-sided chess clock with a pre-start countdown.
// Remaining time is derived from wall-clock timestamps, never from tick counts.
// Clock state is not synchronised; the owning session serialises access.
// The scheduled tick task has its own lock.
type Clock struct {
	now      func() time.Time
	preStart time.Duration

	state     State
	remaining [2]time.Duration
	active    rules.Color
	since     time.Time
	deadline  time.Time

	taskMu sync.Mutex
	cancel context.CancelFunc
}

func New(cfg Config) *Clock {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitial
	}
	if cfg.PreStart <= 0 {
		cfg.PreStart = DefaultPreStart
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Clock{
		now:       cfg.Now,
		preStart:  cfg.PreStart,
		remaining: [2]time.Duration{cfg.Initial, cfg.Initial},
		active:    rules.White,
	}
}

func (c *Clock) State() State { return c.state }

// BeginPreStart moves Idle to PreStart. Any other state is left alone.
func (c *Clock) BeginPreStart() bool {
	if c.state != Idle {
		return false
	}
	c.state = PreStart
	c.deadline = c.now().Add(c.preStart)
	return true
}

// OnMove records an accepted move; next is the color now on move.
// The first move cancels the countdown and starts the clock for next.
func (c *Clock) OnMove(next rules.Color) {
	now := c.now()
	switch c.state {
	case Idle, PreStart:
		c.state = Running
		c.deadline = time.Time{}
	case Running:
		c.bank(now)
	default:
		return
	}
	c.active = next
	c.since = now
}

// Restore puts next on the clock without a move (undo).
func (c *Clock) Restore(next rules.Color) {
	now := c.now()
	if c.state == Running {
		c.bank(now)
	}
	c.active = next
	c.since = now
}

// Tick reports countdown expiry or a flag fall. Both stop the clock.
func (c *Clock) Tick() Event {
	now := c.now()
	switch c.state {
	case PreStart:
		if !now.Before(c.deadline) {
			c.Stop()
			return Event{Kind: EventPreStartExpired}
		}
	case Running:
		if c.left(c.active, now) <= 0 {
			loser := c.active
			c.Stop()
			return Event{Kind: EventTimeout, Loser: loser}
		}
	}
	return Event{}
}

// Stop freezes both sides and cancels the scheduled tick. Safe to call repeatedly.
func (c *Clock) Stop() {
	if c.state == Running {
		c.bank(c.now())
	}
	c.state = Stopped
	c.Cancel()
}

func (c *Clock) Snapshot() Snapshot {
	now := c.now()
	s := Snapshot{
		White:   c.left(rules.White, now),
		Black:   c.left(rules.Black, now),
		Active:  c.active,
		Running: c.state == Running,
		State:   c.state,
	}
	if c.state == PreStart {
		if d := c.deadline.Sub(now); d > 0 {
			s.PreStart = d
		}
	}
	return s
}

// Remaining returns the time left for color as of now.
func (c *Clock) Remaining(color rules.Color) time.Duration {
	return c.left(color, c.now())
}

func (c *Clock) left(color rules.Color, now time.Time) time.Duration {
	r := c.remaining[color]
	if c.state == Running && color == c.active {
		r -= now.Sub(c.since)
	}
	if r < 0 {
		return 0
	}
	return r
}

func (c *Clock) bank(now time.Time) {
	c.remaining[c.active] = c.left(c.active, now)
	c.since = now
}

// Schedule runs fn every interval on its own goroutine until Cancel or Stop.
// A new schedule replaces the previous one. fn receives the task context so it
// can detect a cancel that raced with it.
func (c *Clock) Schedule(interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	c.taskMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.taskMu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn(ctx)
			}
		}
	}()
}

// Scheduled reports whether a tick task is active.
func (c *Clock) Scheduled() bool {
	c.taskMu.Lock()
	defer c.taskMu.Unlock()
	return c.cancel != nil
}

func (c *Clock) Cancel() {
	c.taskMu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.taskMu.Unlock()
}
