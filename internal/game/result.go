package game

import (
	"strings"

	"github.com/park285/cheese-chess-rooms/internal/chess/rules"
)

type Outcome string

const (
	InProgress Outcome = "in-progress"
	WhiteWin   Outcome = "white-win"
	BlackWin   Outcome = "black-win"
	Draw       Outcome = "draw"
	Cancelled  Outcome = "cancelled"
)

type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonFiftyMove            Reason = "fifty-move"
	ReasonThreefoldRepetition  Reason = "threefold-repetition"
	ReasonInsufficientMaterial Reason = "insufficient-material"
	ReasonTimeout              Reason = "timeout"
	ReasonResignation          Reason = "resignation"
	ReasonAgreedDraw           Reason = "agreed-draw"
	ReasonNoFirstMove          Reason = "no-first-move"
)

// wire names understood by existing clients
var wireReasons = map[Reason]string{
	ReasonCheckmate:            "checkMate",
	ReasonStalemate:            "stalemate",
	ReasonFiftyMove:            "50-move-rule",
	ReasonThreefoldRepetition:  "threefold-repetition",
	ReasonInsufficientMaterial: "insufficient-material",
	ReasonTimeout:              "timeOut",
	ReasonResignation:          "give-up",
	ReasonAgreedDraw:           "agreed-draw",
	ReasonNoFirstMove:          "no_first_move",
}

func (r Reason) Wire() string {
	if s, ok := wireReasons[r]; ok {
		return s
	}
	return string(r)
}

// ParseWireReason accepts both wire names and internal names.
func ParseWireReason(s string) (Reason, bool) {
	s = strings.TrimSpace(s)
	for r, w := range wireReasons {
		if strings.EqualFold(s, w) || strings.EqualFold(s, string(r)) {
			return r, true
		}
	}
	switch strings.ToLower(s) {
	case "resign", "resignation", "giveup":
		return ReasonResignation, true
	case "timeout":
		return ReasonTimeout, true
	}
	return ReasonNone, false
}

// Result is immutable once Outcome leaves InProgress.
type Result struct {
	Outcome Outcome
	Reason  Reason
}

func (r Result) Over() bool { return r.Outcome != InProgress }

// Winner returns the winning color for decisive results.
func (r Result) Winner() (rules.Color, bool) {
	switch r.Outcome {
	case WhiteWin:
		return rules.White, true
	case BlackWin:
		return rules.Black, true
	}
	return rules.White, false
}

func winBy(c rules.Color, reason Reason) Result {
	if c == rules.White {
		return Result{Outcome: WhiteWin, Reason: reason}
	}
	return Result{Outcome: BlackWin, Reason: reason}
}

func resultFor(cls rules.Classification, mover rules.Color) Result {
	switch cls {
	case rules.Checkmate:
		return winBy(mover, ReasonCheckmate)
	case rules.Stalemate:
		return Result{Outcome: Draw, Reason: ReasonStalemate}
	case rules.FiftyMove:
		return Result{Outcome: Draw, Reason: ReasonFiftyMove}
	case rules.ThreefoldRepetition:
		return Result{Outcome: Draw, Reason: ReasonThreefoldRepetition}
	case rules.InsufficientMaterial:
		return Result{Outcome: Draw, Reason: ReasonInsufficientMaterial}
	}
	return Result{Outcome: InProgress}
}
