package models

import "github.com/jason-s-yu/tictacgo/internal/game"

// Player is one identity inside a lobby. Mark is assigned once per lobby
// and survives reconnects and rounds; MarkNone means spectator.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mark      game.Mark `json:"mark"`
	Connected bool      `json:"connected"`
	Ready     bool      `json:"ready"`
}

// Seated reports whether the player holds a mark.
func (p *Player) Seated() bool {
	return p.Mark.Valid()
}
