package lobby

import (
	"errors"

	"github.com/jason-s-yu/tictacgo/internal/game"
	"github.com/jason-s-yu/tictacgo/internal/protocol"
)

var (
	ErrUnauthenticated = errors.New("identity required")
	ErrAlreadyJoined   = errors.New("connection already bound to a player")
	ErrLobbyClosed     = errors.New("lobby closed")
	ErrStoreClosed     = errors.New("lobby store closed")
	// ErrSuperseded is the close reason for a connection replaced by a newer
	// one for the same player.
	ErrSuperseded = errors.New("connection superseded")
)

// ErrorCode maps an action error to the code sent in an error notice.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return "notYourTurn"
	case errors.Is(err, game.ErrCellOccupied):
		return "cellOccupied"
	case errors.Is(err, game.ErrInvalidPosition):
		return "invalidPosition"
	case errors.Is(err, game.ErrIllegalMove):
		return "illegalMove"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, protocol.ErrProtocol):
		return "protocolError"
	}
	return "error"
}
