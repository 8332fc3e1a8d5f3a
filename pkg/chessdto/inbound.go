package chessdto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client message tags.
const (
	TypeJoin       = "join"
	TypeMakeMove   = "make_move"
	TypeOfferDraw  = "offer-draw"
	TypeOfferUndo  = "offer-undo"
	TypeAcceptDraw = "accept-draw"
	TypeAcceptUndo = "accept-undo"
	TypeGameOver   = "game_over"
	TypeCancelGame = "cancel_game"
)

var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Inbound is the closed set of client messages. Only types in this package
// implement it.
type Inbound interface {
	Room() string
	inbound()
}

type MovePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type Join struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	UserID string `json:"userId,omitempty"`
	Rating int    `json:"rating,omitempty"`
}

type MakeMove struct {
	RoomID string      `json:"roomId"`
	Move   MovePayload `json:"move"`
}

type OfferDraw struct {
	RoomID string `json:"roomId"`
}

type OfferUndo struct {
	RoomID string `json:"roomId"`
}

type AcceptDraw struct {
	RoomID string `json:"roomId"`
}

type AcceptUndo struct {
	RoomID string `json:"roomId"`
}

// GameOver is a client-declared ending. Winner is advisory only.
type GameOver struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
}

type CancelGame struct {
	RoomID string `json:"roomId"`
}

func (m Join) Room() string       { return m.RoomID }
func (m MakeMove) Room() string   { return m.RoomID }
func (m OfferDraw) Room() string  { return m.RoomID }
func (m OfferUndo) Room() string  { return m.RoomID }
func (m AcceptDraw) Room() string { return m.RoomID }
func (m AcceptUndo) Room() string { return m.RoomID }
func (m GameOver) Room() string   { return m.RoomID }
func (m CancelGame) Room() string { return m.RoomID }

func (Join) inbound()       {}
func (MakeMove) inbound()   {}
func (OfferDraw) inbound()  {}
func (OfferUndo) inbound()  {}
func (AcceptDraw) inbound() {}
func (AcceptUndo) inbound() {}
func (GameOver) inbound()   {}
func (CancelGame) inbound() {}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one client frame. Failures wrap ErrMalformedMessage or
// ErrUnknownMessageType.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var msg Inbound
	var err error
	switch env.Type {
	case TypeJoin:
		msg, err = decodeAs[Join](data)
	case TypeMakeMove, "move":
		msg, err = decodeAs[MakeMove](data)
	case TypeOfferDraw:
		msg, err = decodeAs[OfferDraw](data)
	case TypeOfferUndo:
		msg, err = decodeAs[OfferUndo](data)
	case TypeAcceptDraw:
		msg, err = decodeAs[AcceptDraw](data)
	case TypeAcceptUndo:
		msg, err = decodeAs[AcceptUndo](data)
	case TypeGameOver:
		msg, err = decodeAs[GameOver](data)
	case TypeCancelGame:
		msg, err = decodeAs[CancelGame](data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return v, nil
}

func validate(msg Inbound) error {
	if strings.TrimSpace(msg.Room()) == "" {
		return fmt.Errorf("%w: roomId is required", ErrMalformedMessage)
	}
	switch m := msg.(type) {
	case MakeMove:
		if m.Move.From == "" || m.Move.To == "" {
			return fmt.Errorf("%w: move.from and move.to are required", ErrMalformedMessage)
		}
	case GameOver:
		if strings.TrimSpace(m.Reason) == "" {
			return fmt.Errorf("%w: reason is required", ErrMalformedMessage)
		}
	}
	return nil
}
