// internal/handlers/qr.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// LobbyQRHandler renders a PNG QR code of the lobby's share link
// (/lobby/{id} on the host the request came in on).
func LobbyQRHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbyID, err := uuid.Parse(mux.Vars(r)["lobbyID"])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}
		if _, ok := s.Lobbies.Get(lobbyID); !ok {
			http.Error(w, "lobby does not exist", http.StatusNotFound)
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		link := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			s.Logger.WithError(err).Error("qr generation failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
