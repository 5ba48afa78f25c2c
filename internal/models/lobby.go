// internal/models/lobby.go
package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/game"
)

// LobbyState is the lifecycle phase of a lobby's current round.
type LobbyState string

const (
	StateWaitingForPlayers LobbyState = "waitingForPlayers"
	StateWaitingForReady   LobbyState = "waitingForReady"
	StateInProgress        LobbyState = "inProgress"
	StateRoundOver         LobbyState = "roundOver"
)

// Joinable reports whether the listing feed should advertise the lobby.
func (s LobbyState) Joinable() bool {
	return s == StateWaitingForPlayers || s == StateWaitingForReady
}

// SeatSummary is the public view of a player in the lobby listing.
type SeatSummary struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Mark game.Mark `json:"mark"`
}

// LobbySummary is what the listing endpoint and the Redis mirror expose.
type LobbySummary struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	MaxPlayers int           `json:"maxPlayers"`
	Private    bool          `json:"private"`
	State      LobbyState    `json:"state"`
	Players    []SeatSummary `json:"players"`
	Spectators int           `json:"spectators"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// SortSummaries orders summaries oldest first, ties broken by id.
func SortSummaries(sums []LobbySummary) {
	sort.Slice(sums, func(i, j int) bool {
		if !sums[i].CreatedAt.Equal(sums[j].CreatedAt) {
			return sums[i].CreatedAt.Before(sums[j].CreatedAt)
		}
		return sums[i].ID.String() < sums[j].ID.String()
	})
}
