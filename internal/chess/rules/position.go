package rules

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is a full game state. The exported fields are a read-only view of
// the engine position behind it. Copying a Position is a snapshot: the engine
// never mutates a position in place. Build one with NewPosition or ParseFEN.
type Position struct {
	Board          Board
	Turn           Color
	Castling       Castling
	EnPassant      Square
	HalfmoveClock  int
	FullmoveNumber int

	check  bool
	engine *nchess.Position
}

// Fingerprint identifies a position for repetition counting.
type Fingerprint struct {
	board     [64]byte
	turn      Color
	castling  Castling
	enPassant Square
}

func NewPosition() Position {
	return fromEngine(nchess.NewGame().Position(), false)
}

func fromEngine(ep *nchess.Position, check bool) Position {
	p := Position{
		Turn:           colorFromEngine(ep.Turn()),
		EnPassant:      NoSquare,
		FullmoveNumber: 1,
		check:          check,
		engine:         ep,
	}
	for sq, pc := range ep.Board().SquareMap() {
		p.Board.set(Square(sq), pieceFromEngine(pc))
	}
	fields := strings.Fields(ep.String())
	if len(fields) == 6 {
		p.Castling, _ = parseCastling(fields[2])
		if sq, err := ParseSquare(fields[3]); err == nil {
			p.EnPassant = sq
		}
		p.HalfmoveClock, _ = strconv.Atoi(fields[4])
		p.FullmoveNumber, _ = strconv.Atoi(fields[5])
	}
	return p
}

// Fingerprint covers placement, side to move, castling rights and the en
// passant square, the latter only when an en passant capture is actually legal.
func (p *Position) Fingerprint() Fingerprint {
	fp := Fingerprint{turn: p.Turn, castling: p.Castling, enPassant: NoSquare}
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if pc := p.Board[r][f]; !pc.Empty() {
				fp.board[r*8+f] = pc.fenLetter()
			}
		}
	}
	if p.EnPassant != NoSquare {
		for _, m := range p.engine.ValidMoves() {
			if m.HasTag(nchess.EnPassant) {
				fp.enPassant = p.EnPassant
				break
			}
		}
	}
	return fp
}

// FEN encodes the position in Forsyth-Edwards Notation.
func (p *Position) FEN() string {
	return p.engine.String()
}

// ParseFEN decodes a FEN string. The halfmove and fullmove fields are optional.
func ParseFEN(fen string) (Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 || len(fields) > 6 {
		return Position{}, fmt.Errorf("%w: expected 4 to 6 fields", ErrBadFEN)
	}
	if strings.Count(fields[0], "K") != 1 || strings.Count(fields[0], "k") != 1 {
		return Position{}, fmt.Errorf("%w: one king per side required", ErrBadFEN)
	}
	full := []string{fields[0], fields[1], fields[2], fields[3], "0", "1"}
	copy(full[4:], fields[4:])
	if n, err := strconv.Atoi(full[4]); err != nil || n < 0 {
		return Position{}, fmt.Errorf("%w: bad halfmove clock", ErrBadFEN)
	}
	if n, err := strconv.Atoi(full[5]); err != nil || n < 1 {
		return Position{}, fmt.Errorf("%w: bad fullmove number", ErrBadFEN)
	}
	if _, err := parseCastling(full[2]); err != nil {
		return Position{}, err
	}

	opt, err := nchess.FEN(strings.Join(full, " "))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	p := fromEngine(nchess.NewGame(opt).Position(), false)
	p.check = p.kingAttacked()
	return p, nil
}

func parseCastling(s string) (Castling, error) {
	var c Castling
	if s == "-" {
		return c, nil
	}
	for _, ch := range s {
		switch ch {
		case 'K':
			c |= WhiteKingside
		case 'Q':
			c |= WhiteQueenside
		case 'k':
			c |= BlackKingside
		case 'q':
			c |= BlackQueenside
		default:
			return c, fmt.Errorf("%w: bad castling %q", ErrBadFEN, s)
		}
	}
	return c, nil
}
