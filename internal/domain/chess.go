package domain

import (
	"strings"
	"time"
)

type PlayerInfo struct {
	UserID string
	Name   string
	Rating int
}

// GameRecord is a finished game as handed to the archive.
type GameRecord struct {
	ID          string
	RoomID      string
	White       PlayerInfo
	Black       PlayerInfo
	Outcome     string
	Reason      string
	Winner      string
	MovesSAN    []string
	MovesUCI    []string
	FinalFEN    string
	PGN         string
	ECOCode     string
	ECOName     string
	TimeControl string
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
}

// Moves returns the SAN move list joined by spaces.
func (g *GameRecord) Moves() string { return strings.Join(g.MovesSAN, " ") }

// Involves reports whether userID played either color.
func (g *GameRecord) Involves(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return g.White.UserID == userID || g.Black.UserID == userID
}
