// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jason-s-yu/tictacgo/internal/auth"
	"github.com/jason-s-yu/tictacgo/internal/lobby"
	"github.com/jason-s-yu/tictacgo/internal/middleware"
	"github.com/jason-s-yu/tictacgo/internal/models"
	"github.com/sirupsen/logrus"
)

// Lister serves the lobby listing. *lobby.Store and *cache.Client satisfy it.
type Lister interface {
	ListLobbies(ctx context.Context) ([]models.LobbySummary, error)
}

// WSConfig tunes the per-connection pumps.
type WSConfig struct {
	QueueSize      int
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 disables pings
	OriginPatterns []string
}

// Server holds what the HTTP and websocket handlers share.
type Server struct {
	Lobbies  *lobby.Store
	Resolver *auth.Resolver
	Tokens   *auth.Tokens
	Listing  Lister
	Logger   logrus.FieldLogger
	WS       WSConfig
}

// NewServer wires a server around store and tokens with an in-memory listing.
func NewServer(store *lobby.Store, tokens *auth.Tokens, logger logrus.FieldLogger, ws WSConfig) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if ws.QueueSize < 1 {
		ws.QueueSize = 64
	}
	if ws.WriteTimeout <= 0 {
		ws.WriteTimeout = 10 * time.Second
	}
	return &Server{
		Lobbies:  store,
		Resolver: auth.NewResolver(tokens),
		Tokens:   tokens,
		Listing:  store,
		Logger:   logger,
		WS:       ws,
	}
}

// NewRouter mounts every endpoint behind recovery and request logging.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(s.Logger))
	r.Use(middleware.LogMiddleware(s.Logger))

	r.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/identity", IdentityHandler(s)).Methods(http.MethodPost)
	r.HandleFunc("/lobby/create", CreateLobbyHandler(s)).Methods(http.MethodPost)
	r.HandleFunc("/lobby/list", ListLobbiesHandler(s)).Methods(http.MethodGet)
	r.HandleFunc("/lobby/ws/{lobbyID}", LobbyWSHandler(s)).Methods(http.MethodGet)
	r.HandleFunc("/lobby/{lobbyID}/qr", LobbyQRHandler(s)).Methods(http.MethodGet)
	return r
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
