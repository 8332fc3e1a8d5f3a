package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/park285/cheese-chess-rooms/internal/domain"
)

var ecoBook = opening.NewBookECO()

// Annotate fills PGN and ECO fields. The move list is replayed through an
// independent move generator; a replay failure leaves ECO empty and is
// returned so the caller can log it.
func Annotate(rec *domain.GameRecord) error {
	var replayErr error
	game := nchess.NewGame()
	for i, mv := range rec.MovesUCI {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			replayErr = fmt.Errorf("replay ply %d %q: %w", i+1, mv, err)
			break
		}
	}
	if replayErr == nil && ecoBook != nil {
		if eco := ecoBook.Find(game.Moves()); eco != nil {
			rec.ECOCode, rec.ECOName = eco.Code(), eco.Title()
		}
	}
	rec.PGN = BuildPGN(rec)
	return replayErr
}

func pgnResult(outcome string) string {
	switch outcome {
	case "white-win":
		return "1-0"
	case "black-win":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the record as PGN with the seven-tag roster plus
// TimeControl, Termination and ECO when known.
func BuildPGN(rec *domain.GameRecord) string {
	var b strings.Builder
	date := rec.FinishedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(rec.Outcome)

	tag := func(k, v string) { fmt.Fprintf(&b, "[%s \"%s\"]\n", k, sanitizePGN(v)) }
	tag("Event", "Casual game")
	tag("Site", "room "+rec.RoomID)
	tag("Date", fmt.Sprintf("%04d.%02d.%02d", date.Year(), int(date.Month()), date.Day()))
	tag("Round", "-")
	tag("White", orUnknown(rec.White.Name))
	tag("Black", orUnknown(rec.Black.Name))
	tag("Result", result)
	if strings.TrimSpace(rec.TimeControl) != "" {
		tag("TimeControl", rec.TimeControl)
	}
	if strings.TrimSpace(rec.Reason) != "" {
		tag("Termination", rec.Reason)
	}
	if rec.ECOCode != "" {
		tag("ECO", rec.ECOCode)
		tag("Opening", rec.ECOName)
	}
	b.WriteString("\n")

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, strings.TrimSpace(rec.MovesSAN[i]))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
