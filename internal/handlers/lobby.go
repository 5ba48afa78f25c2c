// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/tictacgo/internal/lobby"
)

const maxBodyBytes = 4 << 10

type createLobbyRequest struct {
	Name     string `json:"name"`
	HostName string `json:"hostName"`
	Password string `json:"password"`
}

// CreateLobbyHandler creates an in-memory lobby. An empty body is allowed.
func CreateLobbyHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad lobby request payload", http.StatusBadRequest)
			return
		}

		lob, err := s.Lobbies.Create(lobby.CreateOptions{
			Name:     req.Name,
			HostName: req.HostName,
			Password: req.Password,
		})
		if errors.Is(err, lobby.ErrStoreClosed) {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			s.Logger.WithError(err).Error("failed to create lobby")
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, lob.Summary())
	}
}

// ListLobbiesHandler returns lobbies still waiting for players or readiness.
func ListLobbiesHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbies, err := s.Listing.ListLobbies(r.Context())
		if err != nil {
			s.Logger.WithError(err).Error("failed to list lobbies")
			http.Error(w, "failed to list lobbies", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, lobbies)
	}
}
