// internal/protocol/events.go
package protocol

import (
	"encoding/json"
	"time"

	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/models"
)

// Outbound frame types. "move" and "chat" reuse the inbound names.
const (
	TypeAssignPlayer  = "assignPlayer"
	TypeLobbyFull     = "lobbyFull"
	TypeUpdatePlayers = "updatePlayers"
	TypeStartGame     = "startGame"
	TypeInitialState  = "initialState"
	TypeUpdateTurn    = "updateTurn"
	TypeWin           = "win"
	TypeDraw          = "draw"
	TypeReset         = "reset"
	TypeError         = "error"
)

// Event is a server frame. Every event serializes with its "type" field first.
type Event interface {
	EventType() string
}

type header struct {
	Type string `json:"type"`
}

func (h header) EventType() string { return h.Type }

// Encode serializes an event for the wire.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

type AssignPlayer struct {
	header
	UserName string    `json:"userName"`
	Symbol   game.Mark `json:"symbol"`
	ID       string    `json:"id"`
}

func NewAssignPlayer(name string, mark game.Mark, id string) AssignPlayer {
	return AssignPlayer{header: header{TypeAssignPlayer}, UserName: name, Symbol: mark, ID: id}
}

// LobbyFull tells a joiner that both seats are taken and they are spectating.
type LobbyFull struct {
	header
	UserName string `json:"userName"`
	Text     string `json:"text"`
	ID       string `json:"id"`
}

func NewLobbyFull(name, id string) LobbyFull {
	return LobbyFull{
		header:   header{TypeLobbyFull},
		UserName: name,
		Text:     "The lobby is full, you are now spectating.",
		ID:       id,
	}
}

type UpdatePlayers struct {
	header
	Players []models.Player `json:"players"`
}

func NewUpdatePlayers(players []models.Player) UpdatePlayers {
	if players == nil {
		players = []models.Player{}
	}
	return UpdatePlayers{header: header{TypeUpdatePlayers}, Players: players}
}

type StartGame struct {
	header
}

func NewStartGame() StartGame {
	return StartGame{header{TypeStartGame}}
}

// InitialState is sent to a connection when it attaches and again when it
// binds an identity, so a reconnecting player can rebuild the board.
type InitialState struct {
	header
	GameBoard    game.Board           `json:"gameBoard"`
	ChatMessages []models.ChatMessage `json:"chatMessages"`
	CurrentTurn  game.Mark            `json:"currentTurn"`
	GameStarted  bool                 `json:"gameStarted"`
}

func NewInitialState(b game.Board, chat []models.ChatMessage, turn game.Mark, started bool) InitialState {
	if chat == nil {
		chat = []models.ChatMessage{}
	}
	return InitialState{
		header:       header{TypeInitialState},
		GameBoard:    b,
		ChatMessages: chat,
		CurrentTurn:  turn,
		GameStarted:  started,
	}
}

type MoveMade struct {
	header
	Position int       `json:"position"`
	Symbol   game.Mark `json:"symbol"`
}

func NewMoveMade(position int, mark game.Mark) MoveMade {
	return MoveMade{header: header{TypeMove}, Position: position, Symbol: mark}
}

// UpdateTurn carries the mark whose turn it is as its text.
type UpdateTurn struct {
	header
	Text game.Mark `json:"text"`
}

func NewUpdateTurn(turn game.Mark) UpdateTurn {
	return UpdateTurn{header: header{TypeUpdateTurn}, Text: turn}
}

type Win struct {
	header
	Text   string    `json:"text"`
	Winner game.Mark `json:"winner"`
	Line   game.Line `json:"line"`
}

func NewWin(out game.Outcome) Win {
	return Win{
		header: header{TypeWin},
		Text:   "Player " + string(out.Winner) + " wins!",
		Winner: out.Winner,
		Line:   out.Line,
	}
}

type Draw struct {
	header
	Text string `json:"text"`
}

func NewDraw() Draw {
	return Draw{header: header{TypeDraw}, Text: "It's a draw!"}
}

type ChatPosted struct {
	header
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatPosted(msg models.ChatMessage) ChatPosted {
	return ChatPosted{header: header{TypeChat}, Sender: msg.Sender, Text: msg.Text, Timestamp: msg.Timestamp}
}

type Reset struct {
	header
}

func NewReset() Reset {
	return Reset{header{TypeReset}}
}

// Notice reports a rejected action to the connection that sent it only.
type Notice struct {
	header
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewNotice(code, message string) Notice {
	return Notice{header: header{TypeError}, Code: code, Message: message}
}
