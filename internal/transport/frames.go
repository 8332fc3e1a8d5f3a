package transport

import (
	"errors"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
	"github.com/park285/cheese-chess-rooms/internal/game"
	"github.com/park285/cheese-chess-rooms/internal/msgcat"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/chessdto"
)

func moveEntry(rec rules.MoveRecord) chessdto.MoveEntry {
	e := chessdto.MoveEntry{
		From:  rec.From.String(),
		To:    rec.To.String(),
		SAN:   rec.SAN,
		Color: rec.Color.String(),
		FEN:   rec.FEN,
	}
	if rec.Promotion != rules.NoKind {
		e.Promotion = string(rec.Promotion.Letter())
	}
	return e
}

func historyOf(s *game.Session) []chessdto.MoveEntry {
	recs := s.History()
	out := make([]chessdto.MoveEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, moveEntry(r))
	}
	return out
}

// ceilSeconds rounds up so a clock with 0.3s left still shows 1.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func timerFrame(s *game.Session) chessdto.TimerUpdate {
	snap := s.ClockSnapshot()
	return chessdto.NewTimerUpdate(ceilSeconds(snap.White), ceilSeconds(snap.Black), s.Turn().String(), snap.Running)
}

func preStartFrame(s *game.Session) chessdto.PreStartUpdate {
	snap := s.ClockSnapshot()
	return chessdto.NewPreStartUpdate(ceilSeconds(snap.PreStart), s.MoveCount() > 0)
}

func positionFrame(s *game.Session) chessdto.Position {
	return chessdto.NewPosition(s.FEN(), s.Turn().String(), historyOf(s))
}

func gameOverFrame(r game.Result) chessdto.GameOverEvent {
	winner := ""
	if c, ok := r.Winner(); ok {
		winner = c.String()
	}
	return chessdto.NewGameOver(r.Reason.Wire(), winner)
}

func playerFrame(p game.Player, c rules.Color) chessdto.PlayerJoined {
	return chessdto.NewPlayerJoined(chessdto.Player{ID: p.ID, Username: p.Name, Color: c.String(), Rating: p.Rating})
}

type codeMapping struct {
	err  error
	code string
}

var codes = []codeMapping{
	{chessdto.ErrMalformedMessage, chessdto.CodeMalformedMessage},
	{chessdto.ErrUnknownMessageType, chessdto.CodeUnknownMessageType},
	{room.ErrRoomFull, chessdto.CodeRoomFull},
	{room.ErrNotInRoom, chessdto.CodeNotInRoom},
	{room.ErrRoomClosed, chessdto.CodeNotInRoom},
	{room.ErrInvalidRoomID, chessdto.CodeMalformedMessage},
	{game.ErrNoFreeSeat, chessdto.CodeRoomFull},
	{game.ErrNotSeated, chessdto.CodeNotSeated},
	{game.ErrWrongTurn, chessdto.CodeWrongTurn},
	{game.ErrIllegalMove, chessdto.CodeIllegalMove},
	{rules.ErrBadSquare, chessdto.CodeIllegalMove},
	{rules.ErrIllegalMove, chessdto.CodeIllegalMove},
	{game.ErrGameOver, chessdto.CodeGameOver},
	{game.ErrNotStarted, chessdto.CodeNotStarted},
	{game.ErrNoMovesToUndo, chessdto.CodeNoMovesToUndo},
	{game.ErrNoPendingOffer, chessdto.CodeNoPendingOffer},
	{game.ErrClaimRejected, chessdto.CodeClaimRejected},
}

// domainError maps err onto a stable wire code and a catalog message.
// Detail is whatever the wrapping added after the sentinel text.
func domainError(cat *msgcat.Catalog, err error, roomID string) chessdto.DomainError {
	code := chessdto.CodeInternal
	detail := ""
	for _, m := range codes {
		if errors.Is(err, m.err) {
			code = m.code
			detail = strings.Trim(strings.Replace(err.Error(), m.err.Error(), "", 1), ": ")
			break
		}
	}
	msg := cat.Error(code, msgcat.ErrorData{RoomID: roomID, Detail: detail}, err.Error())
	return chessdto.DomainError{Code: code, Message: msg, Retryable: code == chessdto.CodeInternal}
}
