package game

import (
	"errors"
	"fmt"
)

// ErrIllegalMove is the parent of every rejected move. Match with errors.Is.
var ErrIllegalMove = errors.New("illegal move")

var (
	ErrNotYourTurn     = fmt.Errorf("%w: not your turn", ErrIllegalMove)
	ErrCellOccupied    = fmt.Errorf("%w: cell occupied", ErrIllegalMove)
	ErrInvalidPosition = fmt.Errorf("%w: invalid position", ErrIllegalMove)
)
