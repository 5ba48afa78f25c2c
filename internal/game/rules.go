// internal/game/rules.go
package game

import (
	"encoding/json"
	"fmt"
)

// Mark is the symbol a seated player places on the board.
// The zero value is an empty cell, or a spectator when used on a player.
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "X"
	MarkO    Mark = "O"
)

// Opponent returns the mark that moves after m.
func (m Mark) Opponent() Mark {
	switch m {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	}
	return MarkNone
}

// Valid reports whether m is one of the two playable marks.
func (m Mark) Valid() bool {
	return m == MarkX || m == MarkO
}

// MarshalJSON encodes an empty mark as null so boards serialize as [null,"X",...].
func (m Mark) MarshalJSON() ([]byte, error) {
	if m == MarkNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

func (m *Mark) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = MarkNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Mark(s) {
	case MarkNone, MarkX, MarkO:
		*m = Mark(s)
		return nil
	}
	return fmt.Errorf("unknown mark %q", s)
}

// BoardSize is the number of cells on the 3x3 board.
const BoardSize = 9

// Board holds cells 0..8 in row-major order.
type Board [BoardSize]Mark

// Filled returns the number of non-empty cells.
func (b Board) Filled() int {
	n := 0
	for _, c := range b {
		if c != MarkNone {
			n++
		}
	}
	return n
}

// Full reports whether every cell holds a mark.
func (b Board) Full() bool {
	return b.Filled() == BoardSize
}

// Line is three cell indices that win when they share a mark.
type Line [3]int

var allLines = [...]Line{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// linesThrough[i] lists only the lines that contain cell i, so a win check
// after a move never scans unrelated lines.
var linesThrough [BoardSize][]Line

func init() {
	for _, l := range allLines {
		for _, cell := range l {
			linesThrough[cell] = append(linesThrough[cell], l)
		}
	}
}

// Result classifies the board after a move.
type Result int

const (
	Ongoing Result = iota
	Win
	Draw
)

func (r Result) String() string {
	switch r {
	case Win:
		return "win"
	case Draw:
		return "draw"
	}
	return "ongoing"
}

// Outcome is the verdict for a board after the move at a given cell.
// Winner and Line are set only when Result is Win.
type Outcome struct {
	Result Result
	Winner Mark
	Line   Line
}

// ValidateMove checks that position is on the board and empty.
func ValidateMove(b Board, position int) error {
	if position < 0 || position >= BoardSize {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	if b[position] != MarkNone {
		return fmt.Errorf("%w: %d holds %s", ErrCellOccupied, position, b[position])
	}
	return nil
}

// Evaluate inspects only the lines through last. A board with every cell
// filled and no completed line is a draw.
func Evaluate(b Board, last int) Outcome {
	if last >= 0 && last < BoardSize {
		if m := b[last]; m != MarkNone {
			for _, l := range linesThrough[last] {
				if b[l[0]] == m && b[l[1]] == m && b[l[2]] == m {
					return Outcome{Result: Win, Winner: m, Line: l}
				}
			}
		}
	}
	if b.Full() {
		return Outcome{Result: Draw}
	}
	return Outcome{Result: Ongoing}
}

// Play validates and applies mark at position, then evaluates the result.
// On error the board is left untouched.
func Play(b *Board, position int, mark Mark) (Outcome, error) {
	if !mark.Valid() {
		return Outcome{}, fmt.Errorf("%w: no mark to place", ErrIllegalMove)
	}
	if err := ValidateMove(*b, position); err != nil {
		return Outcome{}, err
	}
	b[position] = mark
	return Evaluate(*b, position), nil
}
