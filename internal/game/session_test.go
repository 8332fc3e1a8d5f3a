package game

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
	"github.com/park285/cheese-chess-rooms/internal/clock"
	"github.com/park285/cheese-chess-rooms/internal/domain"
)

type captureArchiver struct {
	mu   sync.Mutex
	recs []domain.GameRecord
}

func (c *captureArchiver) Submit(rec domain.GameRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
}

func (c *captureArchiver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

type fakeTime struct{ t time.Time }

func (f *fakeTime) now() time.Time          { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func colorPtr(c rules.Color) *rules.Color { return &c }

func newStartedSession(t *testing.T) (*Session, *captureArchiver, *fakeTime) {
	t.Helper()
	ft := &fakeTime{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	arch := &captureArchiver{}
	s := NewSession("r1", Config{
		Clock:       clock.Config{Initial: time.Minute, PreStart: 10 * time.Second},
		TimeControl: "1+0",
		Now:         ft.now,
	}, arch, nil)
	if c, err := s.Join(Player{ID: "w1", UserID: "u-white", Name: "alice", Rating: 1500}, colorPtr(rules.White)); err != nil || c != rules.White {
		t.Fatalf("join white: %v %v", c, err)
	}
	if c, err := s.Join(Player{ID: "b1", UserID: "u-black", Name: "bob"}, colorPtr(rules.Black)); err != nil || c != rules.Black {
		t.Fatalf("join black: %v %v", c, err)
	}
	if !s.Start() {
		t.Fatalf("expected pre-start to begin")
	}
	return s, arch, ft
}

func mv(t *testing.T, uci string) rules.Move {
	t.Helper()
	from, err := rules.ParseSquare(uci[:2])
	if err != nil {
		t.Fatalf("square: %v", err)
	}
	to, err := rules.ParseSquare(uci[2:4])
	if err != nil {
		t.Fatalf("square: %v", err)
	}
	promo, err := rules.ParsePromotion(uci[4:])
	if err != nil {
		t.Fatalf("promotion: %v", err)
	}
	return rules.Move{From: from, To: to, Promotion: promo}
}

func play(t *testing.T, s *Session, ucis ...string) {
	t.Helper()
	for i, u := range ucis {
		id := "w1"
		if s.Turn() == rules.Black {
			id = "b1"
		}
		if _, err := s.Move(id, mv(t, u)); err != nil {
			t.Fatalf("move %d %s: %v", i, u, err)
		}
	}
}

func TestJoinColorPolicy(t *testing.T) {
	s := NewSession("r", Config{}, nil, nil)

	c, err := s.Join(Player{ID: "a"}, colorPtr(rules.White))
	if err != nil || c != rules.White {
		t.Fatalf("first join: %v %v", c, err)
	}
	c, err = s.Join(Player{ID: "b"}, colorPtr(rules.White))
	if err != nil || c != rules.Black {
		t.Fatalf("taken preference should fall back to free color: %v %v", c, err)
	}
	if _, err := s.Join(Player{ID: "c"}, nil); !errors.Is(err, ErrNoFreeSeat) {
		t.Fatalf("third join: expected ErrNoFreeSeat, got %v", err)
	}
	if c, _ := s.Join(Player{ID: "a"}, colorPtr(rules.Black)); c != rules.White {
		t.Fatalf("seated identity must keep its color")
	}

	s.Leave("a")
	c, err = s.Join(Player{ID: "d"}, nil)
	if err != nil || c != rules.White {
		t.Fatalf("rejoin should take the freed color: %v %v", c, err)
	}

	s2 := NewSession("r", Config{}, nil, nil)
	if c, _ := s2.Join(Player{ID: "x"}, colorPtr(rules.Black)); c != rules.Black {
		t.Fatalf("free preference must be granted")
	}
	if c, _ := s2.Join(Player{ID: "y"}, nil); c != rules.White {
		t.Fatalf("second player should get white")
	}
}

func TestSingleJoinNeverStarts(t *testing.T) {
	s := NewSession("r2", Config{}, nil, nil)
	s.Join(Player{ID: "a"}, nil)
	if s.Start() {
		t.Fatalf("pre-start must not begin with one player")
	}
	if s.ClockState() != clock.Idle {
		t.Fatalf("clock should stay idle, got %s", s.ClockState())
	}
	if _, err := s.Move("a", mv(t, "e2e4")); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestMoveGuards(t *testing.T) {
	s, _, _ := newStartedSession(t)

	if _, err := s.Move("b1", mv(t, "e7e5")); !errors.Is(err, ErrWrongTurn) {
		t.Fatalf("black first: expected ErrWrongTurn, got %v", err)
	}
	if _, err := s.Move("stranger", mv(t, "e2e4")); !errors.Is(err, ErrWrongTurn) {
		t.Fatalf("stranger: expected ErrWrongTurn, got %v", err)
	}
	if _, err := s.Move("w1", mv(t, "e2e5")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if s.Turn() != rules.White || s.MoveCount() != 0 {
		t.Fatalf("rejected moves must not change state")
	}

	out, err := s.Move("w1", mv(t, "e2e4"))
	if err != nil {
		t.Fatalf("e2e4: %v", err)
	}
	if out.Turn != rules.Black || out.Record.SAN != "e4" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	snap := s.ClockSnapshot()
	if snap.State != clock.Running || snap.Active != rules.Black {
		t.Fatalf("black should be on the clock: %+v", snap)
	}
	if s.Start() {
		t.Fatalf("Start after first move must be a no-op")
	}
}

func TestTurnAlternates(t *testing.T) {
	s, _, _ := newStartedSession(t)
	want := rules.White
	for _, u := range []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"} {
		if s.Turn() != want {
			t.Fatalf("turn = %v, want %v", s.Turn(), want)
		}
		play(t, s, u)
		want = want.Other()
	}
	if s.Turn() != rules.Black {
		t.Fatalf("expected black to move")
	}
}

func TestFoolsMateArchivedOnce(t *testing.T) {
	s, arch, _ := newStartedSession(t)
	play(t, s, "f2f3", "e7e5", "g2g4", "d8h4")

	r := s.Result()
	if r.Outcome != BlackWin || r.Reason != ReasonCheckmate || r.Reason.Wire() != "checkMate" {
		t.Fatalf("unexpected result %+v", r)
	}
	if w, ok := r.Winner(); !ok || w.String() != "b" {
		t.Fatalf("winner should be black")
	}
	if s.ClockState() != clock.Stopped {
		t.Fatalf("clock should be stopped")
	}
	if arch.count() != 1 {
		t.Fatalf("expected one archived record, got %d", arch.count())
	}
	rec := arch.recs[0]
	if rec.Moves() != "f3 e5 g4 Qh4#" || rec.Winner != "b" || rec.Outcome != "black-win" || rec.Reason != "checkmate" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.White.Name != "alice" || rec.White.Rating != 1500 || rec.Black.UserID != "u-black" || rec.TimeControl != "1+0" {
		t.Fatalf("player info missing from record: %+v", rec)
	}

	if _, err := s.Move("w1", mv(t, "a2a3")); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if err := s.ReportEnd("w1", ReasonResignation); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if arch.count() != 1 {
		t.Fatalf("record must be submitted exactly once")
	}
}

func TestThreefoldRepetition(t *testing.T) {
	s, arch, _ := newStartedSession(t)
	play(t, s, "g1f3", "g8f6", "f3g1", "f6g8", "g1f3", "g8f6", "f3g1")
	if s.Result().Over() {
		t.Fatalf("game ended too early")
	}
	play(t, s, "f6g8")
	r := s.Result()
	if r.Outcome != Draw || r.Reason != ReasonThreefoldRepetition || r.Reason.Wire() != "threefold-repetition" {
		t.Fatalf("unexpected result %+v", r)
	}
	if arch.count() != 1 {
		t.Fatalf("draw should be archived")
	}
}

func TestUndoRoundTrip(t *testing.T) {
	s, _, _ := newStartedSession(t)
	play(t, s, "e2e4", "d7d5", "e4e5", "f7f5")
	before := s.Position()
	if before.EnPassant.String() != "f6" {
		t.Fatalf("expected en passant target f6, got %s", before.EnPassant)
	}
	reps := s.Repetitions()

	play(t, s, "e5f6")
	if _, err := s.OfferUndo("w1"); err != nil {
		t.Fatalf("offer undo: %v", err)
	}
	undone, err := s.AcceptUndo("b1")
	if err != nil {
		t.Fatalf("accept undo: %v", err)
	}
	if undone.SAN != "exf6" {
		t.Fatalf("undone move = %q", undone.SAN)
	}
	after := s.Position()
	if after != before {
		t.Fatalf("position not restored:\n got %s\nwant %s", after.FEN(), before.FEN())
	}
	if s.Turn() != rules.White || s.MoveCount() != 4 || s.Repetitions() != reps {
		t.Fatalf("turn/history/repetitions not restored")
	}
	if s.ClockSnapshot().Active != rules.White {
		t.Fatalf("white should be back on the clock")
	}
}

func TestUndoRestoresCastlingRights(t *testing.T) {
	s, _, _ := newStartedSession(t)
	play(t, s, "e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6")
	before := s.Position()
	play(t, s, "e1g1")
	if s.Position().Castling.Has(rules.WhiteKingside) {
		t.Fatalf("castling should revoke rights")
	}
	s.OfferUndo("w1")
	if _, err := s.AcceptUndo("b1"); err != nil {
		t.Fatalf("accept undo: %v", err)
	}
	if got := s.Position(); got != before || !got.Castling.Has(rules.WhiteKingside) {
		t.Fatalf("castling rights not restored: %s", got.FEN())
	}
}

func TestUndoGuards(t *testing.T) {
	s, _, _ := newStartedSession(t)
	if _, err := s.OfferUndo("w1"); !errors.Is(err, ErrNoMovesToUndo) {
		t.Fatalf("expected ErrNoMovesToUndo, got %v", err)
	}
	if _, err := s.AcceptUndo("b1"); !errors.Is(err, ErrNoMovesToUndo) {
		t.Fatalf("expected ErrNoMovesToUndo, got %v", err)
	}
	play(t, s, "e2e4")
	if _, err := s.AcceptUndo("b1"); !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("expected ErrNoPendingOffer, got %v", err)
	}
	s.OfferUndo("w1")
	if _, err := s.AcceptUndo("w1"); !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("offerer cannot accept own offer, got %v", err)
	}
	if _, err := s.AcceptUndo("nobody"); !errors.Is(err, ErrNotSeated) {
		t.Fatalf("expected ErrNotSeated, got %v", err)
	}
}

func TestDrawAgreement(t *testing.T) {
	s, arch, _ := newStartedSession(t)
	play(t, s, "e2e4")
	if err := s.AcceptDraw("w1"); !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("expected ErrNoPendingOffer, got %v", err)
	}
	to, err := s.OfferDraw("b1")
	if err != nil || to != rules.White {
		t.Fatalf("offer draw: %v %v", to, err)
	}
	if err := s.AcceptDraw("w1"); err != nil {
		t.Fatalf("accept draw: %v", err)
	}
	if r := s.Result(); r.Outcome != Draw || r.Reason.Wire() != "agreed-draw" {
		t.Fatalf("unexpected result %+v", r)
	}
	if arch.count() != 1 {
		t.Fatalf("agreed draw should be archived")
	}
}

func TestResignation(t *testing.T) {
	s, arch, _ := newStartedSession(t)
	play(t, s, "d2d4")
	if err := s.ReportEnd("w1", ReasonResignation); err != nil {
		t.Fatalf("resign: %v", err)
	}
	r := s.Result()
	if r.Outcome != BlackWin || r.Reason.Wire() != "give-up" {
		t.Fatalf("unexpected result %+v", r)
	}
	if arch.count() != 1 || arch.recs[0].Winner != "b" {
		t.Fatalf("resignation should be archived with black as winner")
	}
	if err := s.ReportEnd("b1", ReasonCheckmate); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestReportEndRejectsUnverifiedClaims(t *testing.T) {
	s, _, _ := newStartedSession(t)
	play(t, s, "e2e4")
	if err := s.ReportEnd("w1", ReasonTimeout); !errors.Is(err, ErrClaimRejected) {
		t.Fatalf("expected ErrClaimRejected, got %v", err)
	}
	if err := s.ReportEnd("w1", ReasonCheckmate); !errors.Is(err, ErrClaimRejected) {
		t.Fatalf("expected ErrClaimRejected, got %v", err)
	}
	if err := s.ReportEnd("ghost", ReasonResignation); !errors.Is(err, ErrNotSeated) {
		t.Fatalf("expected ErrNotSeated, got %v", err)
	}
	if s.Result().Over() {
		t.Fatalf("rejected claims must not end the game")
	}
}

func TestTimeout(t *testing.T) {
	s, arch, ft := newStartedSession(t)
	play(t, s, "e2e4", "e7e5")

	ft.advance(30 * time.Second)
	if ev := s.Tick(); ev.Kind != clock.EventNone {
		t.Fatalf("unexpected event %v", ev.Kind)
	}
	ft.advance(31 * time.Second)
	ev := s.Tick()
	if ev.Kind != clock.EventTimeout || ev.Loser != rules.White {
		t.Fatalf("expected white timeout, got %+v", ev)
	}
	r := s.Result()
	if r.Outcome != BlackWin || r.Reason.Wire() != "timeOut" {
		t.Fatalf("unexpected result %+v", r)
	}
	if s.ClockSnapshot().Running || s.ClockSnapshot().White != 0 {
		t.Fatalf("clock should be stopped at zero")
	}
	if arch.count() != 1 {
		t.Fatalf("timeout should be archived")
	}
}

func TestTimeoutClaimConfirmedByClock(t *testing.T) {
	s, _, ft := newStartedSession(t)
	play(t, s, "e2e4")
	ft.advance(2 * time.Minute)
	if err := s.ReportEnd("w1", ReasonTimeout); err != nil {
		t.Fatalf("confirmed timeout claim: %v", err)
	}
	if r := s.Result(); r.Outcome != WhiteWin || r.Reason != ReasonTimeout {
		t.Fatalf("black flagged, expected white win: %+v", r)
	}
}

func TestMoveAfterFlagEndsGame(t *testing.T) {
	s, _, ft := newStartedSession(t)
	play(t, s, "e2e4")
	ft.advance(2 * time.Minute)
	if _, err := s.Move("b1", mv(t, "e7e5")); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if r := s.Result(); r.Outcome != WhiteWin || r.Reason != ReasonTimeout {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestPreStartExpiryCancels(t *testing.T) {
	s, arch, ft := newStartedSession(t)
	ft.advance(11 * time.Second)
	if ev := s.Tick(); ev.Kind != clock.EventPreStartExpired {
		t.Fatalf("expected pre-start expiry, got %v", ev.Kind)
	}
	r := s.Result()
	if r.Outcome != Cancelled || r.Reason.Wire() != "no_first_move" {
		t.Fatalf("unexpected result %+v", r)
	}
	if arch.count() != 0 {
		t.Fatalf("cancelled games are not archived")
	}
}

func TestCancelDuringPreStart(t *testing.T) {
	s, _, _ := newStartedSession(t)
	if err := s.Cancel("b1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.Result().Outcome != Cancelled {
		t.Fatalf("expected cancelled")
	}

	s2, _, _ := newStartedSession(t)
	play(t, s2, "e2e4")
	if err := s2.Cancel("b1"); !errors.Is(err, ErrClaimRejected) {
		t.Fatalf("cancel after first move: expected ErrClaimRejected, got %v", err)
	}
}

func TestParseWireReason(t *testing.T) {
	cases := map[string]Reason{
		"give-up":      ReasonResignation,
		"resign":       ReasonResignation,
		"timeOut":      ReasonTimeout,
		"agreed-draw":  ReasonAgreedDraw,
		"checkMate":    ReasonCheckmate,
		"50-move-rule": ReasonFiftyMove,
	}
	for in, want := range cases {
		got, ok := ParseWireReason(in)
		if !ok || got != want {
			t.Fatalf("ParseWireReason(%q) = %q %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseWireReason("bogus"); ok {
		t.Fatalf("unknown reason accepted")
	}
}
