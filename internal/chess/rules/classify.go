package rules

import nchess "github.com/corentings/chess/v2"

// Classification is the status of a position after a half-move.
type Classification uint8

const (
	None Classification = iota
	Check
	Checkmate
	Stalemate
	FiftyMove
	ThreefoldRepetition
	InsufficientMaterial
)

func (c Classification) String() string {
	switch c {
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case FiftyMove:
		return "fifty-move"
	case ThreefoldRepetition:
		return "threefold-repetition"
	case InsufficientMaterial:
		return "insufficient-material"
	default:
		return "none"
	}
}

// Terminal reports whether the classification ends the game.
func (c Classification) Terminal() bool { return c != None && c != Check }

// Classify evaluates p in fixed priority:
// fifty-move, threefold repetition, insufficient material, checkmate, stalemate.
// repetitions is how many times p's fingerprint has occurred, p included.
func Classify(p *Position, repetitions int) Classification {
	if p.HalfmoveClock >= 100 {
		return FiftyMove
	}
	if repetitions >= 3 {
		return ThreefoldRepetition
	}
	if InsufficientMaterialOn(&p.Board) {
		return InsufficientMaterial
	}
	switch p.engine.Status() {
	case nchess.Checkmate:
		return Checkmate
	case nchess.Stalemate:
		return Stalemate
	}
	if InCheck(p) {
		return Check
	}
	return None
}

// InsufficientMaterialOn reports a dead position by material alone:
// bare kings, a single minor piece, two knights of one side against a bare king,
// or bishops only, all on squares of one color.
func InsufficientMaterialOn(b *Board) bool {
	var knights [2]int
	var bishops, lightBishops int
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			pc := b[r][f]
			switch pc.Kind {
			case Pawn, Rook, Queen:
				return false
			case Knight:
				knights[pc.Color]++
			case Bishop:
				bishops++
				if SquareAt(f, r).light() {
					lightBishops++
				}
			}
		}
	}
	minors := knights[White] + knights[Black] + bishops
	switch {
	case minors <= 1:
		return true
	case bishops == 0 && minors == 2 && (knights[White] == 2 || knights[Black] == 2):
		return true
	case knights[White]+knights[Black] == 0 && (lightBishops == 0 || lightBishops == bishops):
		return true
	}
	return false
}
