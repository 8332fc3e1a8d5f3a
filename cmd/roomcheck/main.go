package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-chess-rooms/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func main() {
	wsURL := getenv("CHESS_WS_URL", "ws://localhost:3000/ws")
	roomID := getenv("CHESS_ROOM", "roomcheck")
	name := getenv("CHESS_NAME", "roomcheck")
	color := getenv("CHESS_COLOR", "")
	watch, err := time.ParseDuration(getenv("CHESS_WATCH", "10s"))
	if err != nil {
		log.Fatalf("CHESS_WATCH: %v", err)
	}
	// space separated from-to pairs played whenever it is our turn, e.g. "e2e4 g1f3"
	moves := strings.Fields(os.Getenv("CHESS_MOVES"))

	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		log.Fatalf("ws connect error: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx, cancel := context.WithTimeout(context.Background(), watch)
	defer cancel()

	if err := wsjson.Write(ctx, conn, struct {
		Type string `json:"type"`
		chessdto.Join
	}{Type: chessdto.TypeJoin, Join: chessdto.Join{RoomID: roomID, Name: name, Color: color}}); err != nil {
		log.Fatalf("join: %v", err)
	}

	myColor := ""
	for {
		var f map[string]any
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || websocket.CloseStatus(err) != -1 {
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		typ, _ := f["type"].(string)
		fmt.Printf("%-15s %v\n", typ, f)

		switch typ {
		case chessdto.TypeJoined:
			myColor, _ = f["color"].(string)
		case chessdto.TypeGameOverEvent:
			return
		case chessdto.TypeStartGame, chessdto.TypeMove:
			turn, _ := f["turn"].(string)
			if turn != myColor || len(moves) == 0 {
				continue
			}
			if err := play(ctx, conn, roomID, moves[0]); err != nil {
				log.Printf("move %s: %v", moves[0], err)
				return
			}
			moves = moves[1:]
		}
	}
}

func play(ctx context.Context, conn *websocket.Conn, roomID, uci string) error {
	if len(uci) < 4 {
		return fmt.Errorf("bad move %q", uci)
	}
	return wsjson.Write(ctx, conn, struct {
		Type string `json:"type"`
		chessdto.MakeMove
	}{Type: chessdto.TypeMakeMove, MakeMove: chessdto.MakeMove{
		RoomID: roomID,
		Move:   chessdto.MovePayload{From: uci[0:2], To: uci[2:4], Promotion: uci[4:]},
	}})
}
