// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/tictacgo/internal/auth"
	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/hub"
	"github.com/jason-s-yu/tictacgo/internal/lobby"
	"github.com/jason-s-yu/tictacgo/internal/middleware"
	"github.com/jason-s-yu/tictacgo/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "tictactoe"

const maxFrameBytes = 4 << 10

// LobbyWSHandler upgrades a client onto a lobby. The socket observes until
// it sends setUsername.
func LobbyWSHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := uuid.Parse(mux.Vars(r)["lobbyID"])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: s.WS.OriginPatterns,
		})
		if err != nil {
			s.Logger.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the tictactoe subprotocol")
			return
		}

		lob, ok := s.Lobbies.Get(lobbyID)
		if !ok {
			c.Close(InvalidLobbyIDError, "lobby does not exist")
			return
		}
		if !lob.CheckPassword(r.URL.Query().Get("password")) {
			c.Close(WrongPasswordError, "incorrect lobby password")
			return
		}

		logger := s.Logger.WithFields(logrus.Fields{"lobby": lobbyID, "remote": r.RemoteAddr})
		conn := hub.NewConn(r.RemoteAddr, s.WS.QueueSize)
		if err := lob.Attach(conn); err != nil {
			c.Close(LobbyClosedError, "lobby closed")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		c.SetReadLimit(maxFrameBytes)
		ctx, cancel := context.WithCancel(r.Context())
		pumpDone := make(chan struct{})
		go func() {
			defer close(pumpDone)
			writePump(ctx, c, conn, s.WS, logger)
		}()
		// a connection dropped by the hub frees its seat right away rather
		// than after the close handshake with an unresponsive peer
		go func() {
			select {
			case <-conn.Done():
				lob.Detach(conn)
			case <-ctx.Done():
			}
		}()

		sess := &session{
			lob:      lob,
			conn:     conn,
			resolver: s.Resolver,
			token:    playerToken(r),
			logger:   logger,
		}
		readErr := sess.readPump(ctx, c)

		lob.Detach(conn)
		conn.Close(nil)
		cancel()
		<-pumpDone
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// session is one client's view of the lobby: the socket plus the identity
// it bound, if any.
type session struct {
	lob      *lobby.Lobby
	conn     *hub.Conn
	resolver *auth.Resolver
	token    string
	logger   logrus.FieldLogger

	playerID string
}

// readPump decodes frames until the socket closes. It returns nil for a
// normal close.
func (s *session) readPump(ctx context.Context, c *websocket.Conn) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if s.conn.Closed() || ctx.Err() != nil {
				return s.conn.Reason()
			}
			return err
		}

		if typ != websocket.MessageText {
			s.logger.WithField("messageType", typ).Warn("ignoring non-text frame")
			continue
		}

		cmd, err := protocol.Decode(msg)
		if err != nil {
			s.logger.WithError(err).Warn("dropping malformed frame")
			continue
		}
		if err := s.handle(cmd); err != nil {
			if errors.Is(err, lobby.ErrLobbyClosed) {
				return err
			}
			s.reject(cmd, err)
		}
	}
}

func (s *session) handle(cmd protocol.Command) error {
	switch cmd := cmd.(type) {
	case protocol.SetUsername:
		if s.playerID != "" {
			s.logger.WithField("player", s.playerID).Debug("ignoring repeated setUsername")
			return nil
		}
		ident, err := s.resolver.Resolve(auth.Request{Name: cmd.Name, ID: cmd.ID, Token: s.token})
		if err != nil {
			return err
		}
		if _, err := s.lob.Join(s.conn, ident); err != nil {
			return err
		}
		s.playerID = ident.ID
		s.logger = s.logger.WithField("player", ident.ID)
		return nil
	case protocol.Ready:
		if s.playerID == "" {
			return lobby.ErrUnauthenticated
		}
		return s.lob.SetReady(s.playerID, cmd.Ready)
	case protocol.Move:
		if s.playerID == "" {
			return lobby.ErrUnauthenticated
		}
		return s.lob.SubmitMove(s.playerID, cmd.Position)
	case protocol.Chat:
		if s.playerID == "" {
			return lobby.ErrUnauthenticated
		}
		return s.lob.PostChat(s.playerID, cmd.Text)
	}
	return nil
}

// reject reports a failed command. Only a bound player hears about it.
func (s *session) reject(cmd protocol.Command, err error) {
	entry := s.logger.WithError(err).WithField("command", cmd.Kind())
	switch {
	case errors.Is(err, lobby.ErrUnauthenticated):
		entry.Warn("command before setUsername")
	case errors.Is(err, game.ErrIllegalMove), errors.Is(err, auth.ErrInvalidIdentity):
		entry.Debug("rejected command")
		s.lob.Notify(s.conn, err)
	default:
		entry.Error("command failed")
	}
}

// writePump drains the connection's queue onto the socket. When the
// connection is closed it sends a close frame whose code says why.
func writePump(ctx context.Context, c *websocket.Conn, conn *hub.Conn, cfg WSConfig, logger logrus.FieldLogger) {
	var ping <-chan time.Time
	if cfg.PingInterval > 0 {
		t := time.NewTicker(cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			code, reason := closeStatus(conn.Reason())
			if code != websocket.StatusNormalClosure {
				logger.WithError(conn.Reason()).Info("closing websocket")
			}
			c.Close(code, reason)
			return
		case frame := <-conn.Out():
			wctx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := c.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logger.WithError(err).Warn("websocket write failed")
				conn.Close(err)
				c.CloseNow()
				return
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				logger.WithError(err).Info("websocket ping failed")
				conn.Close(err)
				c.CloseNow()
				return
			}
		}
	}
}

func closeStatus(reason error) (websocket.StatusCode, string) {
	switch {
	case reason == nil:
		return websocket.StatusNormalClosure, ""
	case errors.Is(reason, hub.ErrSlowConsumer):
		return SlowConsumerError, "too slow"
	case errors.Is(reason, lobby.ErrSuperseded):
		return SupersededError, "connected from another socket"
	case errors.Is(reason, hub.ErrHubClosed):
		return LobbyClosedError, "lobby closed"
	}
	return websocket.StatusInternalError, "internal error"
}
