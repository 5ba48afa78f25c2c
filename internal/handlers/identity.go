// internal/handlers/identity.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/tictacgo/internal/auth"
	"github.com/sirupsen/logrus"
)

type identityRequest struct {
	Name string `json:"name"`
}

type identityResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// IdentityHandler hands out a player token. A caller that already holds a
// valid token keeps its id and gets a refreshed token.
func IdentityHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identityRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad identity request payload", http.StatusBadRequest)
			return
		}

		ident, err := s.Resolver.Resolve(auth.Request{Name: req.Name, Token: playerToken(r)})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, err := s.Tokens.Issue(ident.ID)
		if err != nil {
			s.Logger.WithError(err).Error("failed to issue player token")
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		setPlayerToken(w, token, s.Tokens.TTL())
		s.Logger.WithFields(logrus.Fields{"player": ident.ID, "source": ident.Source}).Debug("issued player token")
		writeJSON(w, http.StatusOK, identityResponse{ID: ident.ID, Name: ident.Name, Token: token})
	}
}
