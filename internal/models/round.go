package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tictacgo/internal/game"
)

// Move is one accepted placement within a round.
type Move struct {
	Position int       `json:"position"`
	Mark     game.Mark `json:"mark"`
	PlayerID string    `json:"playerId"`
}

// RoundRecord describes a finished round. It is pushed onto the Redis round
// feed and consumed by the historian.
type RoundRecord struct {
	LobbyID    uuid.UUID            `json:"lobbyId"`
	Round      int                  `json:"round"`
	Result     string               `json:"result"`
	Winner     game.Mark            `json:"winner"`
	Players    map[game.Mark]string `json:"players"`
	Moves      []Move               `json:"moves"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt time.Time            `json:"finishedAt"`
}
