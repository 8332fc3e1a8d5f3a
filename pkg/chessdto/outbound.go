package chessdto

// Server message tags.
const (
	TypeJoined         = "joined"
	TypeHistory        = "history"
	TypePosition       = "position"
	TypeTimerUpdate    = "timerUpdate"
	TypePreStartUpdate = "preStartUpdate"
	TypePlayerJoined   = "player_joined"
	TypePlayerLeft     = "player_left"
	TypeStartGame      = "start_game"
	TypeMoveMade       = "moveMade"
	TypeMove           = "move"
	TypeUndoAccepted   = "undo-accepted"
	TypeGameOverEvent  = "gameOver"
	TypeError          = "error"
)

// MoveEntry is one half-move in history and move frames.
type MoveEntry struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	Color     string `json:"color,omitempty"`
	FEN       string `json:"fen,omitempty"`
}

type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Rating   int    `json:"rating,omitempty"`
}

type Joined struct {
	Type         string `json:"type"`
	RoomID       string `json:"roomId"`
	ClientID     string `json:"clientId"`
	Color        string `json:"color"`
	PlayersCount int    `json:"playersCount"`
}

type History struct {
	Type    string      `json:"type"`
	History []MoveEntry `json:"history"`
}

type Position struct {
	Type    string      `json:"type"`
	FEN     string      `json:"fen"`
	Turn    string      `json:"turn"`
	History []MoveEntry `json:"history"`
}

// TimerUpdate carries remaining times in whole seconds, rounded up.
type TimerUpdate struct {
	Type        string `json:"type"`
	WhiteTime   int    `json:"whiteTime"`
	BlackTime   int    `json:"blackTime"`
	CurrentTurn string `json:"currentTurn"`
	IsRunning   bool   `json:"isRunning"`
}

type PreStartUpdate struct {
	Type         string `json:"type"`
	PreStartTime int    `json:"preStartTime"`
	GameStarted  bool   `json:"gameStarted"`
}

type PlayerJoined struct {
	Type   string `json:"type"`
	Player Player `json:"player"`
}

type PlayerLeft struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

type StartGame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	WhiteID string `json:"whiteId"`
	BlackID string `json:"blackId"`
	Turn    string `json:"turn"`
}

type MoveMade struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Turn      string `json:"turn"`
	SAN       string `json:"san"`
}

type Move struct {
	Type string    `json:"type"`
	Move MoveEntry `json:"move"`
	Turn string    `json:"turn"`
}

// Signal is a payload-free frame: offer-draw, offer-undo, undo-accepted.
type Signal struct {
	Type string `json:"type"`
}

type GameOverEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func NewJoined(roomID, clientID, color string, players int) Joined {
	return Joined{Type: TypeJoined, RoomID: roomID, ClientID: clientID, Color: color, PlayersCount: players}
}

func NewHistory(h []MoveEntry) History {
	if h == nil {
		h = []MoveEntry{}
	}
	return History{Type: TypeHistory, History: h}
}

func NewPosition(fen, turn string, h []MoveEntry) Position {
	if h == nil {
		h = []MoveEntry{}
	}
	return Position{Type: TypePosition, FEN: fen, Turn: turn, History: h}
}

func NewTimerUpdate(white, black int, turn string, running bool) TimerUpdate {
	return TimerUpdate{Type: TypeTimerUpdate, WhiteTime: white, BlackTime: black, CurrentTurn: turn, IsRunning: running}
}

func NewPreStartUpdate(seconds int, started bool) PreStartUpdate {
	return PreStartUpdate{Type: TypePreStartUpdate, PreStartTime: seconds, GameStarted: started}
}

func NewPlayerJoined(p Player) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, Player: p}
}

func NewPlayerLeft(clientID string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, ClientID: clientID}
}

func NewStartGame(roomID, whiteID, blackID, turn string) StartGame {
	return StartGame{Type: TypeStartGame, RoomID: roomID, WhiteID: whiteID, BlackID: blackID, Turn: turn}
}

func NewMoveMade(e MoveEntry, turn string) MoveMade {
	return MoveMade{Type: TypeMoveMade, From: e.From, To: e.To, Promotion: e.Promotion, Turn: turn, SAN: e.SAN}
}

func NewMove(e MoveEntry, turn string) Move {
	return Move{Type: TypeMove, Move: e, Turn: turn}
}

func NewSignal(typ string) Signal { return Signal{Type: typ} }

func NewGameOver(reason, winner string) GameOverEvent {
	return GameOverEvent{Type: TypeGameOverEvent, Reason: reason, Winner: winner}
}

func NewError(code, message string) Error {
	return Error{Type: TypeError, Message: message, Code: code}
}
