package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
	"github.com/park285/cheese-chess-rooms/internal/clock"
	"github.com/park285/cheese-chess-rooms/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrGameOver       = errors.New("game is already over")
	ErrWrongTurn      = errors.New("not your turn")
	ErrIllegalMove    = errors.New("illegal move")
	ErrNoMovesToUndo  = errors.New("no moves to undo")
	ErrNoPendingOffer = errors.New("no pending offer from opponent")
	ErrNotSeated      = errors.New("not seated in this game")
	ErrNotStarted     = errors.New("game has not started")
	ErrClaimRejected  = errors.New("claim rejected")
	ErrNoFreeSeat     = errors.New("both colors are taken")
)

// Archiver receives finished games. Submit must not block.
type Archiver interface {
	Submit(rec domain.GameRecord)
}

type Player struct {
	ID     string // connection identity
	UserID string
	Name   string
	Rating int
}

type Config struct {
	Clock       clock.Config
	TimeControl string
	Now         func() time.Time
}

type offerKind uint8

const (
	offerDraw offerKind = iota + 1
	offerUndo
)

type offer struct {
	kind offerKind
	from rules.Color
}

// MoveOutcome describes an accepted move.
type MoveOutcome struct {
	Record         rules.MoveRecord
	Turn           rules.Color
	Classification rules.Classification
	Result         Result
}

// Session is one room's game. It is not safe for concurrent use;
// the room serialises every call.
type Session struct {
	roomID   string
	cfg      Config
	archiver Archiver
	logger   *zap.Logger

	pos       rules.Position
	history   []rules.MoveRecord
	snapshots []rules.Position
	seen      map[rules.Fingerprint]int

	clock  *clock.Clock
	result Result

	seats   [2]*Player
	players [2]Player // last occupant per color, kept for the record
	offer   *offer

	startedAt time.Time
	archived  bool
}

func NewSession(roomID string, cfg Config, archiver Archiver, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Clock.Now == nil {
		cfg.Clock.Now = cfg.Now
	}
	s := &Session{
		roomID:   roomID,
		cfg:      cfg,
		archiver: archiver,
		logger:   logger,
		pos:      rules.NewPosition(),
		seen:     make(map[rules.Fingerprint]int),
		clock:    clock.New(cfg.Clock),
		result:   Result{Outcome: InProgress},
	}
	s.seen[s.pos.Fingerprint()] = 1
	return s
}

// Join seats p. A free preferred color is granted, otherwise the remaining
// free color; a seated identity keeps its color.
func (s *Session) Join(p Player, preferred *rules.Color) (rules.Color, error) {
	if c, ok := s.colorOf(p.ID); ok {
		return c, nil
	}
	var color rules.Color
	switch {
	case preferred != nil && s.seats[*preferred] == nil:
		color = *preferred
	case s.seats[rules.White] == nil:
		color = rules.White
	case s.seats[rules.Black] == nil:
		color = rules.Black
	default:
		return rules.White, ErrNoFreeSeat
	}
	seated := p
	s.seats[color] = &seated
	s.players[color] = p
	return color, nil
}

// Leave frees the identity's seat. Pending offers from that color are dropped.
func (s *Session) Leave(id string) (rules.Color, bool) {
	c, ok := s.colorOf(id)
	if !ok {
		return rules.White, false
	}
	s.seats[c] = nil
	if s.offer != nil && s.offer.from == c {
		s.offer = nil
	}
	return c, true
}

// Start begins the pre-start countdown when both colors are seated and no
// move has been played. It never restarts a countdown or a running game.
func (s *Session) Start() bool {
	if s.result.Over() || !s.BothSeated() || len(s.history) > 0 {
		return false
	}
	return s.clock.BeginPreStart()
}

func (s *Session) Move(id string, m rules.Move) (MoveOutcome, error) {
	if s.result.Over() {
		return MoveOutcome{}, ErrGameOver
	}
	if s.flagged() {
		return MoveOutcome{}, ErrGameOver
	}
	color, ok := s.colorOf(id)
	if !ok || color != s.pos.Turn {
		return MoveOutcome{}, ErrWrongTurn
	}
	if s.clock.State() == clock.Idle {
		return MoveOutcome{}, ErrNotStarted
	}

	next, rec, err := rules.Apply(&s.pos, m)
	if err != nil {
		return MoveOutcome{}, fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
	}

	s.snapshots = append(s.snapshots, s.pos)
	s.pos = next
	s.history = append(s.history, rec)
	fp := next.Fingerprint()
	s.seen[fp]++
	if len(s.history) == 1 {
		s.startedAt = s.cfg.Now()
	}
	s.offer = nil
	s.clock.OnMove(next.Turn)

	cls := rules.Classify(&s.pos, s.seen[fp])
	if cls.Terminal() {
		s.finish(resultFor(cls, color))
	}
	return MoveOutcome{Record: rec, Turn: next.Turn, Classification: cls, Result: s.result}, nil
}

// OfferDraw records a draw offer and returns the color it is addressed to.
func (s *Session) OfferDraw(id string) (rules.Color, error) {
	return s.makeOffer(id, offerDraw)
}

func (s *Session) OfferUndo(id string) (rules.Color, error) {
	return s.makeOffer(id, offerUndo)
}

func (s *Session) makeOffer(id string, kind offerKind) (rules.Color, error) {
	if s.result.Over() {
		return rules.White, ErrGameOver
	}
	c, ok := s.colorOf(id)
	if !ok {
		return rules.White, ErrNotSeated
	}
	if kind == offerUndo && len(s.history) == 0 {
		return rules.White, ErrNoMovesToUndo
	}
	s.offer = &offer{kind: kind, from: c}
	return c.Other(), nil
}

func (s *Session) AcceptDraw(id string) error {
	if s.result.Over() {
		return ErrGameOver
	}
	c, ok := s.colorOf(id)
	if !ok {
		return ErrNotSeated
	}
	if !s.pending(offerDraw, c) {
		return ErrNoPendingOffer
	}
	s.finish(Result{Outcome: Draw, Reason: ReasonAgreedDraw})
	return nil
}

// AcceptUndo takes back the last half-move: board, turn, castling rights,
// en passant target and repetition counts return to their prior values.
func (s *Session) AcceptUndo(id string) (rules.MoveRecord, error) {
	if s.result.Over() {
		return rules.MoveRecord{}, ErrGameOver
	}
	c, ok := s.colorOf(id)
	if !ok {
		return rules.MoveRecord{}, ErrNotSeated
	}
	if len(s.history) == 0 {
		return rules.MoveRecord{}, ErrNoMovesToUndo
	}
	if !s.pending(offerUndo, c) {
		return rules.MoveRecord{}, ErrNoPendingOffer
	}

	n := len(s.history) - 1
	undone := s.history[n]
	fp := s.pos.Fingerprint()
	if s.seen[fp]--; s.seen[fp] <= 0 {
		delete(s.seen, fp)
	}
	s.pos = s.snapshots[n]
	s.history = s.history[:n]
	s.snapshots = s.snapshots[:n]
	s.offer = nil
	s.clock.Restore(s.pos.Turn)
	return undone, nil
}

// ReportEnd handles client-declared endings. Resignation always awards the
// opponent of the requester; a timeout claim must be confirmed by the clock.
func (s *Session) ReportEnd(id string, reason Reason) error {
	if s.result.Over() {
		return ErrGameOver
	}
	c, ok := s.colorOf(id)
	if !ok {
		return ErrNotSeated
	}
	switch reason {
	case ReasonResignation:
		s.finish(winBy(c.Other(), ReasonResignation))
		return nil
	case ReasonAgreedDraw:
		return s.AcceptDraw(id)
	case ReasonTimeout:
		if s.flagged() {
			return nil
		}
		return ErrClaimRejected
	}
	return ErrClaimRejected
}

// Cancel abandons a game that is still in its pre-start countdown.
func (s *Session) Cancel(id string) error {
	if s.result.Over() {
		return ErrGameOver
	}
	if _, ok := s.colorOf(id); !ok {
		return ErrNotSeated
	}
	if len(s.history) > 0 || s.clock.State() != clock.PreStart {
		return ErrClaimRejected
	}
	s.finish(Result{Outcome: Cancelled, Reason: ReasonNoFirstMove})
	return nil
}

// Tick advances the clock and applies expiry or timeout.
func (s *Session) Tick() clock.Event {
	if s.result.Over() {
		return clock.Event{}
	}
	ev := s.clock.Tick()
	s.applyClock(ev)
	return ev
}

// flagged ticks the clock and reports whether it ended the game.
func (s *Session) flagged() bool {
	ev := s.clock.Tick()
	s.applyClock(ev)
	return ev.Kind != clock.EventNone
}

func (s *Session) applyClock(ev clock.Event) {
	switch ev.Kind {
	case clock.EventPreStartExpired:
		s.finish(Result{Outcome: Cancelled, Reason: ReasonNoFirstMove})
	case clock.EventTimeout:
		s.finish(winBy(ev.Loser.Other(), ReasonTimeout))
	}
}

// ScheduleTick runs fn on the clock's own ticker.
func (s *Session) ScheduleTick(interval time.Duration, fn func(ctx context.Context)) {
	s.clock.Schedule(interval, fn)
}

// Close stops the clock and its ticker. Used on room teardown.
func (s *Session) Close() { s.clock.Stop() }

func (s *Session) finish(r Result) {
	if s.result.Over() {
		return
	}
	s.result = r
	s.offer = nil
	s.clock.Stop()

	s.logger.Info("game_finished",
		zap.String("room_id", s.roomID),
		zap.String("outcome", string(r.Outcome)),
		zap.String("reason", string(r.Reason)),
		zap.Int("plies", len(s.history)),
	)

	if r.Outcome == Cancelled || s.archived || s.archiver == nil {
		return
	}
	s.archived = true
	s.archiver.Submit(s.record())
}

func (s *Session) record() domain.GameRecord {
	now := s.cfg.Now()
	started := s.startedAt
	if started.IsZero() {
		started = now
	}
	rec := domain.GameRecord{
		ID:          uuid.NewString(),
		RoomID:      s.roomID,
		White:       domain.PlayerInfo{UserID: s.players[rules.White].UserID, Name: s.players[rules.White].Name, Rating: s.players[rules.White].Rating},
		Black:       domain.PlayerInfo{UserID: s.players[rules.Black].UserID, Name: s.players[rules.Black].Name, Rating: s.players[rules.Black].Rating},
		Outcome:     string(s.result.Outcome),
		Reason:      string(s.result.Reason),
		FinalFEN:    s.pos.FEN(),
		TimeControl: s.cfg.TimeControl,
		StartedAt:   started,
		FinishedAt:  now,
		Duration:    now.Sub(started),
	}
	if w, ok := s.result.Winner(); ok {
		rec.Winner = w.String()
	}
	for _, m := range s.history {
		rec.MovesSAN = append(rec.MovesSAN, m.SAN)
		rec.MovesUCI = append(rec.MovesUCI, m.UCI)
	}
	return rec
}

func (s *Session) pending(kind offerKind, acceptor rules.Color) bool {
	return s.offer != nil && s.offer.kind == kind && s.offer.from != acceptor
}

func (s *Session) colorOf(id string) (rules.Color, bool) {
	for c := rules.White; c <= rules.Black; c++ {
		if p := s.seats[c]; p != nil && p.ID == id {
			return c, true
		}
	}
	return rules.White, false
}

func (s *Session) ColorOf(id string) (rules.Color, bool) { return s.colorOf(id) }

func (s *Session) BothSeated() bool {
	return s.seats[rules.White] != nil && s.seats[rules.Black] != nil
}

// Seat returns the connected player holding c, if any.
func (s *Session) Seat(c rules.Color) (Player, bool) {
	if p := s.seats[c]; p != nil {
		return *p, true
	}
	return Player{}, false
}

func (s *Session) SeatedCount() int {
	n := 0
	for _, p := range s.seats {
		if p != nil {
			n++
		}
	}
	return n
}

func (s *Session) Result() Result { return s.result }
func (s *Session) Turn() rules.Color { return s.pos.Turn }
func (s *Session) FEN() string { return s.pos.FEN() }
func (s *Session) Position() rules.Position { return s.pos }
func (s *Session) MoveCount() int { return len(s.history) }
func (s *Session) ClockSnapshot() clock.Snapshot { return s.clock.Snapshot() }
func (s *Session) ClockState() clock.State { return s.clock.State() }
func (s *Session) Repetitions() int { return s.seen[s.pos.Fingerprint()] }

func (s *Session) History() []rules.MoveRecord {
	out := make([]rules.MoveRecord, len(s.history))
	copy(out, s.history)
	return out
}
