package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrBadSquare   = errors.New("invalid square")
	ErrBadFEN      = errors.New("invalid fen")
)

// Color is the side a piece belongs to.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// String returns the wire form ("w" / "b").
func (c Color) String() string {
	if c == White {
		return "w"
	}
	return "b"
}

// ParseColor accepts "w", "white", "b" and "black".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return White, false
	}
}

type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{' ', 'p', 'n', 'b', 'r', 'q', 'k'}

// Letter returns the lowercase FEN letter, or 0 for NoKind.
func (k Kind) Letter() byte {
	if k == NoKind || int(k) >= len(kindLetters) {
		return 0
	}
	return kindLetters[k]
}

// ParsePromotion maps q/r/b/n (any case) to a promotion kind. Empty input is NoKind.
func ParsePromotion(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoKind, nil
	case "q", "queen":
		return Queen, nil
	case "r", "rook":
		return Rook, nil
	case "b", "bishop":
		return Bishop, nil
	case "n", "knight":
		return Knight, nil
	default:
		return NoKind, fmt.Errorf("promotion %q: %w", s, ErrIllegalMove)
	}
}

// Piece zero value is an empty square.
type Piece struct {
	Color Color
	Kind  Kind
}

func (p Piece) Empty() bool { return p.Kind == NoKind }

func (p Piece) fenLetter() byte {
	l := p.Kind.Letter()
	if p.Color == White {
		return l - 'a' + 'A'
	}
	return l
}

// Square indexes the board as rank*8+file, a1 = 0, h8 = 63.
type Square int8

const NoSquare Square = -1

func SquareAt(file, rank int) Square {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return NoSquare
	}
	return Square(rank*8 + file)
}

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }
func (s Square) Valid() bool { return s >= 0 && s < 64 }

// light squares: a1 is dark
func (s Square) light() bool { return (s.File()+s.Rank())%2 == 1 }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("%q: %w", s, ErrBadSquare)
	}
	f, r := int(s[0]-'a'), int(s[1]-'1')
	sq := SquareAt(f, r)
	if sq == NoSquare {
		return NoSquare, fmt.Errorf("%q: %w", s, ErrBadSquare)
	}
	return sq, nil
}

// Board is indexed [rank][file].
type Board [8][8]Piece

func (b *Board) At(s Square) Piece { return b[s.Rank()][s.File()] }

func (b *Board) set(s Square, p Piece) { b[s.Rank()][s.File()] = p }

// Castling holds the four castling-right flags.
type Castling uint8

const (
	WhiteKingside Castling = 1 << iota
	WhiteQueenside
	BlackKingside
	BlackQueenside
)

func (c Castling) Has(f Castling) bool { return c&f != 0 }

func (c Castling) String() string {
	if c == 0 {
		return "-"
	}
	var b strings.Builder
	if c.Has(WhiteKingside) {
		b.WriteByte('K')
	}
	if c.Has(WhiteQueenside) {
		b.WriteByte('Q')
	}
	if c.Has(BlackKingside) {
		b.WriteByte('k')
	}
	if c.Has(BlackQueenside) {
		b.WriteByte('q')
	}
	return b.String()
}

// Move is the only client input the engine accepts.
type Move struct {
	From      Square
	To        Square
	Promotion Kind
}

func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoKind {
		s += string(m.Promotion.Letter())
	}
	return s
}

// MoveRecord describes one accepted half-move.
type MoveRecord struct {
	From      Square
	To        Square
	SAN       string
	UCI       string
	FEN       string
	Promotion Kind
	Captured  Kind
	Color     Color
}
