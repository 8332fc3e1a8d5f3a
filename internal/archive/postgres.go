package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-chess-rooms/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_games (
	game_id      TEXT PRIMARY KEY,
	room_id      TEXT NOT NULL,
	white_id     TEXT NOT NULL DEFAULT '',
	white_name   TEXT NOT NULL DEFAULT '',
	white_rating INTEGER NOT NULL DEFAULT 0,
	black_id     TEXT NOT NULL DEFAULT '',
	black_name   TEXT NOT NULL DEFAULT '',
	black_rating INTEGER NOT NULL DEFAULT 0,
	outcome      TEXT NOT NULL,
	reason       TEXT NOT NULL,
	winner       TEXT NOT NULL DEFAULT '',
	moves_san    JSONB NOT NULL,
	moves_uci    JSONB NOT NULL,
	final_fen    TEXT NOT NULL,
	pgn          TEXT NOT NULL,
	eco_code     TEXT NOT NULL DEFAULT '',
	eco_name     TEXT NOT NULL DEFAULT '',
	time_control TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS room_games_white_idx ON room_games (white_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS room_games_black_idx ON room_games (black_id, ended_at DESC);
`

type postgresRepo struct {
	db *sql.DB
}

// NewPostgresRepository connects, pings and ensures the schema.
func NewPostgresRepository(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &postgresRepo{db: db}, nil
}

func (r *postgresRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *postgresRepo) SaveGame(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil {
		return nil
	}
	movesSAN, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	movesUCI, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}

	const q = `
		INSERT INTO room_games (
			game_id, room_id,
			white_id, white_name, white_rating,
			black_id, black_name, black_rating,
			outcome, reason, winner,
			moves_san, moves_uci, final_fen, pgn,
			eco_code, eco_name, time_control,
			started_at, ended_at, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12::jsonb, $13::jsonb, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING game_id`

	var id sql.NullString
	err = r.db.QueryRowContext(ctx, q,
		rec.ID, rec.RoomID,
		rec.White.UserID, rec.White.Name, rec.White.Rating,
		rec.Black.UserID, rec.Black.Name, rec.Black.Rating,
		rec.Outcome, rec.Reason, rec.Winner,
		string(movesSAN), string(movesUCI), rec.FinalFEN, rec.PGN,
		rec.ECOCode, rec.ECOName, rec.TimeControl,
		rec.StartedAt, rec.FinishedAt, rec.Duration.Milliseconds(),
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return ErrDuplicateGame
	}
	if err != nil {
		return fmt.Errorf("insert room game: %w", err)
	}
	return nil
}

func (r *postgresRepo) GamesForUser(ctx context.Context, userID string, limit int) ([]*domain.GameRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []*domain.GameRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	const q = `
		SELECT
			game_id, room_id,
			white_id, white_name, white_rating,
			black_id, black_name, black_rating,
			outcome, reason, winner,
			moves_san, moves_uci, final_fen, pgn,
			eco_code, eco_name, time_control,
			started_at, ended_at, duration_ms
		FROM room_games
		WHERE white_id = $1 OR black_id = $1
		ORDER BY ended_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select room games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.GameRecord, 0, limit)
	for rows.Next() {
		var (
			g          domain.GameRecord
			sanJSON    []byte
			uciJSON    []byte
			durationMS int64
		)
		if err := rows.Scan(
			&g.ID, &g.RoomID,
			&g.White.UserID, &g.White.Name, &g.White.Rating,
			&g.Black.UserID, &g.Black.Name, &g.Black.Rating,
			&g.Outcome, &g.Reason, &g.Winner,
			&sanJSON, &uciJSON, &g.FinalFEN, &g.PGN,
			&g.ECOCode, &g.ECOName, &g.TimeControl,
			&g.StartedAt, &g.FinishedAt, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan room game: %w", err)
		}
		g.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal(sanJSON, &g.MovesSAN); err != nil {
			return nil, fmt.Errorf("unmarshal moves_san: %w", err)
		}
		if err := json.Unmarshal(uciJSON, &g.MovesUCI); err != nil {
			return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
		}
		games = append(games, &g)
	}
	return games, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
