package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// PlayerTokenCookie carries the signed player token between visits.
const PlayerTokenCookie = "player_token"

// playerToken returns the player token cookie value, or "" if absent.
func playerToken(r *http.Request) string {
	c, err := r.Cookie(PlayerTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func setPlayerToken(w http.ResponseWriter, token string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     PlayerTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	http.SetCookie(w, c)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
