package transport

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
	"github.com/park285/cheese-chess-rooms/internal/clock"
	"github.com/park285/cheese-chess-rooms/internal/game"
	"github.com/park285/cheese-chess-rooms/internal/room"
	"github.com/park285/cheese-chess-rooms/pkg/chessdto"
	"go.uber.org/zap"
)

const defaultPlayerName = "Player"

func (c *conn) dispatch(data []byte) {
	msg, err := chessdto.Decode(data)
	if err != nil {
		c.logger.Debug("ws_bad_message", zap.Error(err))
		c.fail(err, "")
		return
	}

	switch m := msg.(type) {
	case chessdto.Join:
		c.handleJoin(m)
	case chessdto.MakeMove:
		c.handleMove(m)
	case chessdto.OfferDraw:
		c.inRoom(m.RoomID, func(tx *room.Tx) error {
			to, err := tx.Session().OfferDraw(c.id)
			if err == nil {
				tx.SendColor(to, chessdto.NewSignal(chessdto.TypeOfferDraw))
			}
			return err
		})
	case chessdto.OfferUndo:
		c.inRoom(m.RoomID, func(tx *room.Tx) error {
			to, err := tx.Session().OfferUndo(c.id)
			if err == nil {
				tx.SendColor(to, chessdto.NewSignal(chessdto.TypeOfferUndo))
			}
			return err
		})
	case chessdto.AcceptDraw:
		c.inRoom(m.RoomID, func(tx *room.Tx) error {
			return tx.Session().AcceptDraw(c.id)
		})
	case chessdto.AcceptUndo:
		c.inRoom(m.RoomID, c.acceptUndo)
	case chessdto.GameOver:
		c.inRoom(m.RoomID, func(tx *room.Tx) error {
			reason, ok := game.ParseWireReason(m.Reason)
			if !ok {
				return fmt.Errorf("%w: unknown reason %q", game.ErrClaimRejected, m.Reason)
			}
			return tx.Session().ReportEnd(c.id, reason)
		})
	case chessdto.CancelGame:
		c.inRoom(m.RoomID, func(tx *room.Tx) error {
			return tx.Session().Cancel(c.id)
		})
	default:
		c.fail(fmt.Errorf("%w: %T", chessdto.ErrUnknownMessageType, msg), msg.Room())
	}
}

func (c *conn) fail(err error, roomID string) {
	de := domainError(c.h.catalog, err, roomID)
	if de.Code == chessdto.CodeInternal {
		c.logger.Error("ws_handler_error", zap.String("room_id", roomID), zap.Error(err))
	}
	c.Send(de.Frame())
}

// inRoom runs fn under the room lock for a room this connection joined.
// A transition to game over during fn is broadcast once fn returns, and any
// error fn reports goes back to this connection only.
func (c *conn) inRoom(roomID string, fn func(tx *room.Tx) error) {
	roomID = strings.TrimSpace(roomID)
	rm, ok := c.h.rooms.Get(roomID)
	if !ok || c.roomID != roomID {
		c.fail(room.ErrNotInRoom, roomID)
		return
	}

	var err error
	doErr := rm.Do(func(tx *room.Tx) {
		s := tx.Session()
		wasOver := s.Result().Over()
		err = fn(tx)
		if !wasOver && s.Result().Over() {
			tx.Broadcast(timerFrame(s))
			tx.Broadcast(gameOverFrame(s.Result()))
		}
	})
	if doErr != nil {
		err = doErr
	}
	if err != nil {
		c.fail(err, roomID)
		return
	}
	c.h.rooms.Touch(rm)
}

func (c *conn) handleJoin(m chessdto.Join) {
	roomID := strings.TrimSpace(m.RoomID)
	if c.roomID != "" && c.roomID != roomID {
		c.leaveRoom()
	}

	var preferred *rules.Color
	if col, ok := rules.ParseColor(m.Color); ok {
		preferred = &col
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = defaultPlayerName
	}
	member := &room.Member{ConnID: c.id, UserID: strings.TrimSpace(m.UserID), Name: name, Rating: m.Rating, Out: c}

	rm, color, count, err := c.h.rooms.Join(roomID, member, preferred)
	if err != nil {
		c.fail(err, roomID)
		return
	}
	c.roomID = roomID

	started := false
	err = rm.Do(func(tx *room.Tx) {
		s := tx.Session()
		hist := historyOf(s)
		c.Send(chessdto.NewJoined(roomID, c.id, color.String(), count))
		c.Send(chessdto.NewHistory(hist))
		c.Send(chessdto.NewPosition(s.FEN(), s.Turn().String(), hist))
		c.Send(timerFrame(s))

		if opp, ok := s.Seat(color.Other()); ok {
			c.Send(playerFrame(opp, color.Other()))
		}
		if self, ok := s.Seat(color); ok {
			tx.BroadcastExcept(c.id, playerFrame(self, color))
		}

		if r := s.Result(); r.Over() {
			c.Send(gameOverFrame(r))
			return
		}
		if !s.BothSeated() {
			return
		}
		w, _ := s.Seat(rules.White)
		b, _ := s.Seat(rules.Black)
		tx.Broadcast(chessdto.NewStartGame(roomID, w.ID, b.ID, s.Turn().String()))
		if s.Start() {
			tx.Broadcast(preStartFrame(s))
			c.h.rooms.StartTicker(tx, c.h.tick)
			started = true
		}
	})
	if err != nil {
		c.fail(err, roomID)
		return
	}
	if started {
		c.logger.Info("game_prestart", zap.String("room_id", roomID))
		c.h.rooms.Touch(rm)
	}
}

func (c *conn) handleMove(m chessdto.MakeMove) {
	mv, err := parseMove(m.Move)
	if err != nil {
		c.fail(err, m.RoomID)
		return
	}
	c.inRoom(m.RoomID, func(tx *room.Tx) error {
		s := tx.Session()
		out, err := s.Move(c.id, mv)
		if err != nil {
			return err
		}
		e := moveEntry(out.Record)
		turn := out.Turn.String()
		c.Send(chessdto.NewMoveMade(e, turn))
		tx.BroadcastExcept(c.id, chessdto.NewMove(e, turn))
		tx.BroadcastExcept(c.id, positionFrame(s))
		if s.MoveCount() == 1 {
			tx.Broadcast(chessdto.NewPreStartUpdate(0, true))
		}
		if !out.Result.Over() {
			tx.Broadcast(timerFrame(s))
		}
		return nil
	})
}

func (c *conn) acceptUndo(tx *room.Tx) error {
	s := tx.Session()
	if _, err := s.AcceptUndo(c.id); err != nil {
		return err
	}
	tx.Broadcast(chessdto.NewSignal(chessdto.TypeUndoAccepted))
	tx.Broadcast(positionFrame(s))
	tx.Broadcast(chessdto.NewHistory(historyOf(s)))
	tx.Broadcast(timerFrame(s))
	return nil
}

func (c *conn) leaveRoom() {
	roomID := c.roomID
	c.roomID = ""
	res, err := c.h.rooms.Leave(roomID, c.id)
	if err != nil || res.Closed {
		return
	}
	// ErrRoomClosed here means the room emptied after Leave; nobody is left to tell.
	_ = res.Room.Do(func(tx *room.Tx) {
		tx.Broadcast(chessdto.NewPlayerLeft(c.id))
	})
}

func parseMove(p chessdto.MovePayload) (rules.Move, error) {
	from, err := rules.ParseSquare(p.From)
	if err != nil {
		return rules.Move{}, err
	}
	to, err := rules.ParseSquare(p.To)
	if err != nil {
		return rules.Move{}, err
	}
	promo, err := rules.ParsePromotion(p.Promotion)
	if err != nil {
		return rules.Move{}, err
	}
	return rules.Move{From: from, To: to, Promotion: promo}, nil
}

// tick runs on the room clock with the room locked.
func (h *Handler) tick(tx *room.Tx) bool {
	s := tx.Session()
	wasOver := s.Result().Over()
	s.Tick()
	switch s.ClockState() {
	case clock.PreStart:
		tx.Broadcast(preStartFrame(s))
	case clock.Running:
		tx.Broadcast(timerFrame(s))
	}
	if !wasOver && s.Result().Over() {
		tx.Broadcast(timerFrame(s))
		tx.Broadcast(gameOverFrame(s.Result()))
		h.logger.Info("game_over_by_clock",
			zap.String("room_id", tx.RoomID()),
			zap.String("reason", string(s.Result().Reason)),
		)
		return true
	}
	return false
}
