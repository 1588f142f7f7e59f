package mines

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid board configuration")
	ErrOutOfBounds          = errors.New("cell out of bounds")
	ErrMineCell             = errors.New("cell holds a mine")
	ErrMinesPlaced          = errors.New("mines already placed")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
)

type InvalidBoardParamsError struct {
	Rows  int
	Cols  int
	Mines int
}

type InvalidMoveError struct {
	Cell int
	Size int
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("Move out of range - cell %d - Board has %d cells", e.Cell, e.Size)
}

func (e *InvalidMoveError) Is(target error) bool {
	return target == ErrOutOfBounds
}

func (e *InvalidBoardParamsError) Error() string {
	switch {
	case e.Rows <= 0:
		return fmt.Sprintf("Cannot create a board with %d rows", e.Rows)
	case e.Cols <= 0:
		return fmt.Sprintf("Cannot create a board with %d columns", e.Cols)
	case e.Mines < 0:
		return fmt.Sprintf("Cannot create a board with negative amount of mines: %d", e.Mines)
	case e.Mines >= e.Rows*e.Cols:
		return fmt.Sprintf("Not enough space for %d mines. (%d >= %d * %d)", e.Mines, e.Mines, e.Rows, e.Cols)
	default:
		return "Cannot construct board: unknown error"
	}
}

func (e *InvalidBoardParamsError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// validateParams accepts a board only if at least one cell stays free of
// mines, so the first reveal can always be safe.
func validateParams(rows, cols, mines int) error {
	if rows <= 0 || cols <= 0 || mines < 0 || mines >= rows*cols {
		return &InvalidBoardParamsError{Rows: rows, Cols: cols, Mines: mines}
	}
	return nil
}
