// internal/lobby/lobby_store.go
package lobby

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/auth"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultGracePeriod = 2 * time.Minute
	MaxNameLength      = 64
)

// Mirror receives lobby changes and finished rounds, e.g. to publish them
// to Redis. Implementations must not block.
type Mirror interface {
	PublishLobby(summary models.LobbySummary)
	RemoveLobby(id uuid.UUID)
	PublishRound(rec models.RoundRecord)
}

type StoreConfig struct {
	// GracePeriod is how long a lobby may stay idle before it is removed.
	GracePeriod time.Duration
	Logger      logrus.FieldLogger
	Mirror      Mirror // optional
	Now         func() time.Time
}

// CreateOptions are the client-supplied fields of a create request.
type CreateOptions struct {
	Name     string
	HostName string
	Password string
}

// Store is the process-wide registry of live lobbies. Lobbies that stay idle
// for the grace period are closed and removed.
type Store struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
	reapers map[uuid.UUID]*time.Timer
	closed  bool

	grace  time.Duration
	logger logrus.FieldLogger
	mirror Mirror
	now    func() time.Time
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		lobbies: make(map[uuid.UUID]*Lobby),
		reapers: make(map[uuid.UUID]*time.Timer),
		grace:   cfg.GracePeriod,
		logger:  cfg.Logger,
		mirror:  cfg.Mirror,
		now:     cfg.Now,
	}
}

// Create registers a new lobby. A lobby nobody joins is reaped like an idle one.
func (s *Store) Create(opts CreateOptions) (*Lobby, error) {
	id := uuid.New()

	var hash string
	if opts.Password != "" {
		var err error
		if hash, err = auth.HashPassword(opts.Password); err != nil {
			return nil, err
		}
	}

	hooks := Hooks{OnIdle: s.scheduleReap}
	if s.mirror != nil {
		hooks.OnChange = s.mirror.PublishLobby
		hooks.OnRoundEnd = s.mirror.PublishRound
	}
	l := New(id, Options{
		Name:         lobbyName(id, opts),
		PasswordHash: hash,
		Logger:       s.logger,
		Hooks:        hooks,
		Now:          s.now,
	})

	summary := l.Summary()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	if s.mirror != nil {
		s.mirror.PublishLobby(summary)
	}
	s.lobbies[id] = l
	s.armLocked(id)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"lobby": id, "name": l.Name, "private": l.Private()}).Info("lobby created")
	return l, nil
}

// Get looks up a live lobby.
func (s *Store) Get(id uuid.UUID) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// Delete closes and removes a lobby. It reports whether the lobby existed.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	l, ok := s.lobbies[id]
	if ok {
		delete(s.lobbies, id)
		s.stopLocked(id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	l.Close()
	if s.mirror != nil {
		s.mirror.RemoveLobby(id)
	}
	s.logger.WithField("lobby", id).Info("lobby removed")
	return true
}

// Len is the number of live lobbies.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}

// List returns joinable lobbies, oldest first.
func (s *Store) List() []models.LobbySummary {
	s.mu.Lock()
	lobbies := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		lobbies = append(lobbies, l)
	}
	s.mu.Unlock()

	out := make([]models.LobbySummary, 0, len(lobbies))
	for _, l := range lobbies {
		if sum := l.Summary(); sum.State.Joinable() {
			out = append(out, sum)
		}
	}
	models.SortSummaries(out)
	return out
}

// ListLobbies serves the listing endpoint from memory.
func (s *Store) ListLobbies(_ context.Context) ([]models.LobbySummary, error) {
	return s.List(), nil
}

// Close removes every lobby and stops all reap timers.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	ids := make([]uuid.UUID, 0, len(s.lobbies))
	for id := range s.lobbies {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Delete(id)
	}
}

func (s *Store) scheduleReap(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[id]; !ok || s.closed {
		return
	}
	s.armLocked(id)
}

func (s *Store) armLocked(id uuid.UUID) {
	s.stopLocked(id)
	s.reapers[id] = time.AfterFunc(s.grace, func() { s.reap(id) })
}

func (s *Store) stopLocked(id uuid.UUID) {
	if t, ok := s.reapers[id]; ok {
		t.Stop()
		delete(s.reapers, id)
	}
}

func (s *Store) reap(id uuid.UUID) {
	l, ok := s.Get(id)
	if !ok {
		return
	}
	if !l.CloseIfIdle() {
		return
	}
	s.logger.WithField("lobby", id).Info("reaping idle lobby")
	s.Delete(id)
}

func lobbyName(id uuid.UUID, opts CreateOptions) string {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		if host := auth.CleanName(opts.HostName); host != "" {
			name = host + "'s Lobby"
		} else {
			name = "Lobby " + id.String()[:8]
		}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}
