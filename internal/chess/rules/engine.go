package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Square numbering matches the engine's (a1 = 0, b1 = 1, ..., h8 = 63),
// so squares convert by plain casts.

func colorFromEngine(c nchess.Color) Color {
	if c == nchess.Black {
		return Black
	}
	return White
}

func kindFromEngine(t nchess.PieceType) Kind {
	switch t {
	case nchess.Pawn:
		return Pawn
	case nchess.Knight:
		return Knight
	case nchess.Bishop:
		return Bishop
	case nchess.Rook:
		return Rook
	case nchess.Queen:
		return Queen
	case nchess.King:
		return King
	default:
		return NoKind
	}
}

func pieceFromEngine(pc nchess.Piece) Piece {
	if pc == nchess.NoPiece {
		return Piece{}
	}
	return Piece{Color: colorFromEngine(pc.Color()), Kind: kindFromEngine(pc.Type())}
}

func moveFromEngine(m *nchess.Move) Move {
	return Move{From: Square(m.S1()), To: Square(m.S2()), Promotion: kindFromEngine(m.Promo())}
}

// find returns the engine's legal move matching m, tags included.
func (p *Position) find(m Move) (*nchess.Move, bool) {
	moves := p.engine.ValidMoves()
	for i := range moves {
		if moveFromEngine(&moves[i]) == m {
			mv := moves[i]
			return &mv, true
		}
	}
	return nil, false
}

// play advances past a move taken from the engine's legal move list.
func (p *Position) play(em *nchess.Move) Position {
	return fromEngine(p.engine.Update(em), em.HasTag(nchess.Check))
}

// kingAttacked decides check for a position that was loaded rather than
// reached by a move. The engine only reports check as a move tag, so the
// opponent is handed the move with its own king lifted off the board (no
// pins, no self-check filtering) and asked whether any move lands on our king.
func (p *Position) kingAttacked() bool {
	b := p.Board
	king := NoSquare
	for sq := Square(0); sq < 64; sq++ {
		pc := b.At(sq)
		if pc.Kind != King {
			continue
		}
		if pc.Color == p.Turn {
			king = sq
		} else {
			b.set(sq, Piece{})
		}
	}
	if king == NoSquare {
		return false
	}
	opt, err := nchess.FEN(boardFEN(&b) + " " + p.Turn.Other().String() + " - - 0 1")
	if err != nil {
		return false
	}
	for _, m := range nchess.NewGame(opt).Position().ValidMoves() {
		if Square(m.S2()) == king {
			return true
		}
	}
	return false
}

// boardFEN encodes the placement field of a FEN string.
func boardFEN(b *Board) string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			pc := b[r][f]
			if pc.Empty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(pc.fenLetter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}
