package rules

import (
	"fmt"

	nchess "github.com/corentings/chess/v2"
)

// Apply validates m against the legal move set of p and returns the resulting
// position together with its record. p is left untouched.
// A pawn reaching the last rank without a promotion choice becomes a queen;
// a promotion letter on any other move is ignored.
func Apply(p *Position, m Move) (Position, MoveRecord, error) {
	if !m.From.Valid() || !m.To.Valid() {
		return *p, MoveRecord{}, ErrIllegalMove
	}
	pc := p.Board.At(m.From)
	if pc.Empty() || pc.Color != p.Turn {
		return *p, MoveRecord{}, fmt.Errorf("%s: %w", m.UCI(), ErrIllegalMove)
	}
	if pc.Kind == Pawn && (m.To.Rank() == 7 || m.To.Rank() == 0) {
		if m.Promotion == NoKind {
			m.Promotion = Queen
		}
	} else {
		m.Promotion = NoKind
	}

	em, ok := p.find(m)
	if !ok {
		return *p, MoveRecord{}, fmt.Errorf("%s: %w", m.UCI(), ErrIllegalMove)
	}

	captured := p.Board.At(m.To).Kind
	if em.HasTag(nchess.EnPassant) {
		captured = Pawn
	}

	next := p.play(em)
	rec := MoveRecord{
		From:      m.From,
		To:        m.To,
		UCI:       m.UCI(),
		SAN:       nchess.AlgebraicNotation{}.Encode(p.engine, em),
		FEN:       next.FEN(),
		Promotion: m.Promotion,
		Captured:  captured,
		Color:     p.Turn,
	}
	return next, rec, nil
}

// LegalMoves returns every legal move for the side to move.
func LegalMoves(p *Position) []Move {
	moves := p.engine.ValidMoves()
	out := make([]Move, len(moves))
	for i := range moves {
		out[i] = moveFromEngine(&moves[i])
	}
	return out
}

// InCheck reports whether the side to move is in check.
func InCheck(p *Position) bool { return p.check }
