// internal/lobby/lobby.go
package lobby

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/auth"
	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/hub"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/jason-s-yu/tictacgo/internal/protocol"
	"github.com/sirupsen/logrus"
)

const (
	// MaxSeats is the number of players who hold a mark.
	MaxSeats = 2
	// GameMaster is the sender name of system chat lines.
	GameMaster = "GAMEMASTER"
	// MaxChatLength caps a chat line, in runes.
	MaxChatLength = 500
)

// Hooks let the owner of a lobby observe it. OnChange and OnRoundEnd run
// with the lobby lock held and must not block or call back into the lobby.
// OnIdle runs after the lock is released.
type Hooks struct {
	OnIdle     func(id uuid.UUID)
	OnChange   func(summary models.LobbySummary)
	OnRoundEnd func(rec models.RoundRecord)
}

type Options struct {
	Name         string
	PasswordHash string
	Logger       logrus.FieldLogger
	Hooks        Hooks
	Now          func() time.Time
}

// Lobby is one game's authoritative state. Every mutation holds mu, so all
// commands for a lobby are applied one at a time and every connection sees
// broadcasts in the same order.
type Lobby struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time

	passwordHash string
	hub          *hub.Hub
	logger       logrus.FieldLogger
	hooks        Hooks
	now          func() time.Time

	mu      sync.Mutex
	players []*models.Player // join order
	byID    map[string]*models.Player
	conns   map[string]*hub.Conn // current connection per connected player
	bound   map[*hub.Conn]string // connection -> player id
	board   game.Board
	turn    game.Mark
	state   models.LobbyState
	round   int
	started time.Time
	moves   []models.Move
	chat    []models.ChatMessage
	closed  bool
}

func New(id uuid.UUID, opts Options) *Lobby {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithField("lobby", id)
	return &Lobby{
		ID:           id,
		Name:         opts.Name,
		CreatedAt:    opts.Now(),
		passwordHash: opts.PasswordHash,
		hub:          hub.New(logger),
		logger:       logger,
		hooks:        opts.Hooks,
		now:          opts.Now,
		byID:         make(map[string]*models.Player),
		conns:        make(map[string]*hub.Conn),
		bound:        make(map[*hub.Conn]string),
		turn:         game.MarkX,
		state:        models.StateWaitingForPlayers,
	}
}

// Private reports whether joining requires a password.
func (l *Lobby) Private() bool { return l.passwordHash != "" }

// CheckPassword reports whether password opens the lobby. Public lobbies
// accept anything.
func (l *Lobby) CheckPassword(password string) bool {
	if l.passwordHash == "" {
		return true
	}
	ok, err := auth.VerifyPassword(password, l.passwordHash)
	if err != nil {
		l.logger.WithError(err).Error("stored lobby password hash is unreadable")
		return false
	}
	return ok
}

// Attach registers conn as an observer and sends it the current state.
func (l *Lobby) Attach(conn *hub.Conn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLobbyClosed
	}
	if err := l.hub.Register(conn); err != nil {
		return ErrLobbyClosed
	}
	l.sendLocked(conn, l.initialStateLocked())
	return nil
}

// Detach handles a closed socket, whether or not it was bound to a player.
func (l *Lobby) Detach(conn *hub.Conn) {
	l.mu.Lock()
	id, bound := l.bound[conn]
	l.mu.Unlock()
	if bound {
		l.Disconnect(id, conn)
		return
	}
	l.hub.Unregister(conn)
}

// Join binds conn to ident. A known identity gets its mark back; a new one
// takes the first free seat (X then O) or becomes a spectator.
func (l *Lobby) Join(conn *hub.Conn, ident auth.Identity) (game.Mark, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return game.MarkNone, ErrLobbyClosed
	}
	if _, ok := l.bound[conn]; ok {
		l.mu.Unlock()
		return game.MarkNone, ErrAlreadyJoined
	}
	if err := l.hub.Register(conn); err != nil {
		l.mu.Unlock()
		return game.MarkNone, ErrLobbyClosed
	}

	p, known := l.byID[ident.ID]
	var announce string
	if known {
		if old := l.conns[p.ID]; old != nil && old != conn {
			l.hub.Unregister(old)
			delete(l.bound, old)
			old.Close(ErrSuperseded)
		}
		if ident.Name != "" {
			p.Name = ident.Name
		}
		p.Connected = true
		announce = fmt.Sprintf("welcome back %s", p.Name)
	} else {
		p = &models.Player{
			ID:        ident.ID,
			Name:      ident.Name,
			Mark:      l.freeMarkLocked(),
			Connected: true,
		}
		l.players = append(l.players, p)
		l.byID[p.ID] = p
		if p.Seated() {
			announce = fmt.Sprintf("%s has joined the game as %s!", p.Name, p.Mark)
			if l.state == models.StateWaitingForPlayers && len(l.seatedLocked()) == MaxSeats {
				l.state = models.StateWaitingForReady
			}
		} else {
			announce = fmt.Sprintf("%s is now spectating!", p.Name)
		}
	}
	l.conns[p.ID] = conn
	l.bound[conn] = p.ID

	if p.Seated() {
		l.sendLocked(conn, protocol.NewAssignPlayer(p.Name, p.Mark, p.ID))
	} else {
		l.sendLocked(conn, protocol.NewLobbyFull(p.Name, p.ID))
	}
	l.sendLocked(conn, l.initialStateLocked())
	l.hub.Publish(protocol.NewUpdatePlayers(l.playersLocked()))
	l.appendChatLocked(models.ChatMessage{Sender: GameMaster, Text: announce, Timestamp: l.now().UTC()})
	l.maybeStartLocked()
	l.changedLocked()

	mark := p.Mark
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"player":    ident.ID,
		"mark":      mark,
		"reconnect": known,
		"remote":    conn.Remote,
	}).Info("player joined lobby")
	return mark, nil
}

// Disconnect marks the player offline if conn is still its current
// connection. The seat and mark are kept; readiness is dropped unless a
// round is in progress.
func (l *Lobby) Disconnect(playerID string, conn *hub.Conn) {
	l.hub.Unregister(conn)

	l.mu.Lock()
	if l.bound[conn] == playerID {
		delete(l.bound, conn)
	}
	p := l.byID[playerID]
	if p == nil || l.conns[playerID] != conn {
		l.mu.Unlock()
		return
	}
	delete(l.conns, playerID)
	p.Connected = false
	if l.state != models.StateInProgress {
		p.Ready = false
	}
	if !l.closed {
		l.hub.Publish(protocol.NewUpdatePlayers(l.playersLocked()))
		l.changedLocked()
	}
	idle := !l.closed && l.idleLocked()
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{"player": playerID, "idle": idle}).Info("player disconnected")
	if idle && l.hooks.OnIdle != nil {
		l.hooks.OnIdle(l.ID)
	}
}

// SetReady records readiness for a seated player. Spectators are ignored.
// Clearing readiness mid-round does not end the round.
func (l *Lobby) SetReady(playerID string, ready bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.byID[playerID]
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.Seated() || p.Ready == ready {
		return nil
	}
	p.Ready = ready
	l.hub.Publish(protocol.NewUpdatePlayers(l.playersLocked()))
	l.maybeStartLocked()
	l.changedLocked()
	return nil
}

// SubmitMove places the player's mark at position. Rejected moves leave the
// lobby untouched.
func (l *Lobby) SubmitMove(playerID string, position int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.byID[playerID]
	if p == nil {
		return ErrUnauthenticated
	}
	if l.state != models.StateInProgress || !p.Seated() || p.Mark != l.turn {
		return game.ErrNotYourTurn
	}
	out, err := game.Play(&l.board, position, p.Mark)
	if err != nil {
		return err
	}
	l.moves = append(l.moves, models.Move{Position: position, Mark: p.Mark, PlayerID: p.ID})
	l.hub.Publish(protocol.NewMoveMade(position, p.Mark))

	switch out.Result {
	case game.Win:
		l.hub.Publish(protocol.NewWin(out))
		l.finishRoundLocked(out)
	case game.Draw:
		l.hub.Publish(protocol.NewDraw())
		l.finishRoundLocked(out)
	default:
		l.turn = l.turn.Opponent()
		l.hub.Publish(protocol.NewUpdateTurn(l.turn))
	}
	return nil
}

// PostChat appends a chat line from the player. Blank text is ignored.
func (l *Lobby) PostChat(playerID, text string) error {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxChatLength {
		text = string([]rune(text)[:MaxChatLength])
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.byID[playerID]
	if p == nil {
		return ErrUnauthenticated
	}
	if text == "" {
		return nil
	}
	l.appendChatLocked(models.ChatMessage{Sender: p.Name, Text: text, Timestamp: l.now().UTC()})
	return nil
}

// Notify sends an error notice for err to conn only.
func (l *Lobby) Notify(conn *hub.Conn, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendLocked(conn, protocol.NewNotice(ErrorCode(err), err.Error()))
}

// Idle reports whether no seated player is connected.
func (l *Lobby) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed || l.idleLocked()
}

// CloseIfIdle closes the lobby only if it is idle, atomically with the check.
func (l *Lobby) CloseIfIdle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return true
	}
	if !l.idleLocked() {
		return false
	}
	l.closeLocked()
	return true
}

// Close drops every connection. Further joins fail with ErrLobbyClosed.
func (l *Lobby) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *Lobby) Summary() models.LobbySummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaryLocked()
}

func (l *Lobby) State() models.LobbyState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lobby) Board() game.Board {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.board
}

// Turn is the mark expected to move next.
func (l *Lobby) Turn() game.Mark {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.turn
}

// Players returns copies in join order.
func (l *Lobby) Players() []models.Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playersLocked()
}

func (l *Lobby) Chat() []models.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ChatMessage(nil), l.chat...)
}

func (l *Lobby) freeMarkLocked() game.Mark {
	taken := make(map[game.Mark]bool, MaxSeats)
	for _, p := range l.players {
		taken[p.Mark] = true
	}
	for _, m := range []game.Mark{game.MarkX, game.MarkO} {
		if !taken[m] {
			return m
		}
	}
	return game.MarkNone
}

func (l *Lobby) seatedLocked() []*models.Player {
	seated := make([]*models.Player, 0, MaxSeats)
	for _, p := range l.players {
		if p.Seated() {
			seated = append(seated, p)
		}
	}
	return seated
}

func (l *Lobby) playersLocked() []models.Player {
	out := make([]models.Player, len(l.players))
	for i, p := range l.players {
		out[i] = *p
	}
	return out
}

func (l *Lobby) idleLocked() bool {
	for _, p := range l.players {
		if p.Seated() && p.Connected {
			return false
		}
	}
	return true
}

func (l *Lobby) maybeStartLocked() {
	if l.state != models.StateWaitingForReady {
		return
	}
	seated := l.seatedLocked()
	if len(seated) < MaxSeats {
		return
	}
	for _, p := range seated {
		if !p.Ready {
			return
		}
	}
	l.state = models.StateInProgress
	l.board = game.Board{}
	l.turn = game.MarkX
	l.moves = nil
	l.round++
	l.started = l.now()

	l.hub.Publish(protocol.NewStartGame())
	l.hub.Publish(protocol.NewUpdateTurn(l.turn))
	l.logger.WithField("round", l.round).Info("round started")
}

// finishRoundLocked reports the round and immediately returns the lobby to
// WaitingForReady with a cleared board. Marks are kept; readiness is not.
func (l *Lobby) finishRoundLocked(out game.Outcome) {
	l.state = models.StateRoundOver
	rec := models.RoundRecord{
		LobbyID:    l.ID,
		Round:      l.round,
		Result:     out.Result.String(),
		Winner:     out.Winner,
		Players:    make(map[game.Mark]string, MaxSeats),
		Moves:      l.moves,
		StartedAt:  l.started,
		FinishedAt: l.now(),
	}
	for _, p := range l.seatedLocked() {
		rec.Players[p.Mark] = p.ID
	}
	if l.hooks.OnRoundEnd != nil {
		l.hooks.OnRoundEnd(rec)
	}
	l.logger.WithFields(logrus.Fields{
		"round":  l.round,
		"result": rec.Result,
		"winner": out.Winner,
	}).Info("round finished")

	l.board = game.Board{}
	l.turn = game.MarkX
	l.moves = nil
	for _, p := range l.players {
		p.Ready = false
	}
	l.state = models.StateWaitingForReady

	l.hub.Publish(protocol.NewReset())
	l.hub.Publish(protocol.NewUpdatePlayers(l.playersLocked()))
	l.changedLocked()
}

func (l *Lobby) appendChatLocked(msg models.ChatMessage) {
	l.chat = append(l.chat, msg)
	l.hub.Publish(protocol.NewChatPosted(msg))
}

func (l *Lobby) initialStateLocked() protocol.InitialState {
	started := l.state == models.StateInProgress
	turn := game.MarkNone
	if started {
		turn = l.turn
	}
	chat := append([]models.ChatMessage(nil), l.chat...)
	return protocol.NewInitialState(l.board, chat, turn, started)
}

func (l *Lobby) sendLocked(conn *hub.Conn, ev protocol.Event) {
	if err := l.hub.Send(conn, ev); err != nil {
		l.logger.WithError(err).WithFields(logrus.Fields{
			"conn":  conn.ID,
			"event": ev.EventType(),
		}).Debug("direct send failed")
	}
}

func (l *Lobby) summaryLocked() models.LobbySummary {
	s := models.LobbySummary{
		ID:         l.ID,
		Name:       l.Name,
		MaxPlayers: MaxSeats,
		Private:    l.Private(),
		State:      l.state,
		Players:    []models.SeatSummary{},
		CreatedAt:  l.CreatedAt,
	}
	for _, p := range l.players {
		if p.Seated() {
			s.Players = append(s.Players, models.SeatSummary{ID: p.ID, Name: p.Name, Mark: p.Mark})
		} else {
			s.Spectators++
		}
	}
	return s
}

func (l *Lobby) changedLocked() {
	if l.hooks.OnChange != nil {
		l.hooks.OnChange(l.summaryLocked())
	}
}

func (l *Lobby) closeLocked() {
	if l.closed {
		return
	}
	l.closed = true
	l.hub.Close()
	for id := range l.conns {
		if p := l.byID[id]; p != nil {
			p.Connected = false
		}
	}
	l.conns = make(map[string]*hub.Conn)
	l.bound = make(map[*hub.Conn]string)
	l.logger.Info("lobby closed")
}
