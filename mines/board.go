// Package mines holds the minefield and the rules of a single game.
package mines

import "fmt"

type Visibility byte

const (
	Hidden Visibility = iota
	Flagged
	Revealed
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "Hidden"
	case Flagged:
		return "Flagged"
	case Revealed:
		return "Revealed"
	default:
		return fmt.Sprintf("Visibility(%d)", byte(v))
	}
}

// Board is a rows x cols minefield. A cell is addressed by its linear index
// row*Cols + col.
//
// adjacency holds -k for the k-th placed mine and the number of neighbouring
// mines for every other cell. Counts are only written while placing mines.
type Board struct {
	Rows  int
	Cols  int
	Mines int

	adjacency  []int
	visibility []Visibility
	placed     bool
}

// up, up-right, right, down-right, down, down-left, left, up-left
var neighbourOffsets = [8][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

func NewBoard(rows, cols, mines int) (*Board, error) {
	if err := validateParams(rows, cols, mines); err != nil {
		return nil, err
	}
	size := rows * cols
	return &Board{
		Rows:       rows,
		Cols:       cols,
		Mines:      mines,
		adjacency:  make([]int, size),
		visibility: make([]Visibility, size),
	}, nil
}

func (b *Board) Size() int {
	return b.Rows * b.Cols
}

func (b *Board) Index(row, col int) int {
	return row*b.Cols + col
}

func (b *Board) Coords(cell int) (row, col int) {
	return cell / b.Cols, cell % b.Cols
}

func (b *Board) ValidCell(cell int) bool {
	return cell >= 0 && cell < b.Size()
}

func (b *Board) checkCell(cell int) error {
	if !b.ValidCell(cell) {
		return &InvalidMoveError{Cell: cell, Size: b.Size()}
	}
	return nil
}

func (b *Board) MinesPlaced() bool {
	return b.placed
}

// Neighbours lists the in-bounds neighbours of cell, clockwise from the one
// above it.
func (b *Board) Neighbours(cell int) ([]int, error) {
	if err := b.checkCell(cell); err != nil {
		return nil, err
	}
	return b.neighbours(cell), nil
}

func (b *Board) neighbours(cell int) []int {
	row, col := b.Coords(cell)
	cells := make([]int, 0, len(neighbourOffsets))
	for _, d := range neighbourOffsets {
		r, c := row+d[0], col+d[1]
		if r >= 0 && r < b.Rows && c >= 0 && c < b.Cols {
			cells = append(cells, b.Index(r, c))
		}
	}
	return cells
}

// PlaceMines scatters count mines over every cell except excluded. It can
// only succeed once per board.
func (b *Board) PlaceMines(excluded, count int, rng Rand) error {
	if b.placed {
		return ErrMinesPlaced
	}
	if err := b.checkCell(excluded); err != nil {
		return err
	}
	if err := validateParams(b.Rows, b.Cols, count); err != nil {
		return err
	}
	if count != b.Mines {
		return fmt.Errorf("%w: board holds %d mines, asked to place %d", ErrInvalidConfiguration, b.Mines, count)
	}
	candidates := make([]int, 0, b.Size()-1)
	for cell := range b.Size() {
		if cell != excluded {
			candidates = append(candidates, cell)
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	b.placeAt(candidates[:count])
	return nil
}

func (b *Board) placeAt(cells []int) {
	for k, cell := range cells {
		b.adjacency[cell] = -(k + 1)
		for _, n := range b.neighbours(cell) {
			if b.adjacency[n] >= 0 {
				b.adjacency[n]++
			}
		}
	}
	b.placed = true
}

func (b *Board) isMine(cell int) bool {
	return b.adjacency[cell] < 0
}

func (b *Board) IsMine(cell int) (bool, error) {
	if err := b.checkCell(cell); err != nil {
		return false, err
	}
	return b.isMine(cell), nil
}

func (b *Board) AdjacencyCount(cell int) (int, error) {
	if err := b.checkCell(cell); err != nil {
		return 0, err
	}
	if b.isMine(cell) {
		return 0, ErrMineCell
	}
	return b.adjacency[cell], nil
}

func (b *Board) VisibilityOf(cell int) (Visibility, error) {
	if err := b.checkCell(cell); err != nil {
		return Hidden, err
	}
	return b.visibility[cell], nil
}

// SetFlag does nothing on a revealed cell.
func (b *Board) SetFlag(cell int, flagged bool) error {
	if err := b.checkCell(cell); err != nil {
		return err
	}
	if b.visibility[cell] == Revealed {
		return nil
	}
	if flagged {
		b.visibility[cell] = Flagged
	} else {
		b.visibility[cell] = Hidden
	}
	return nil
}

// Reveal opens a hidden cell and returns what it shows. Flagged and already
// revealed cells are left alone and changed is false.
func (b *Board) Reveal(cell int) (value Display, changed bool, err error) {
	if err := b.checkCell(cell); err != nil {
		return ShowHidden, false, err
	}
	if b.visibility[cell] != Hidden {
		return b.displayOf(cell), false, nil
	}
	b.visibility[cell] = Revealed
	return b.valueOf(cell), true, nil
}

// valueOf is the face of the cell once opened.
func (b *Board) valueOf(cell int) Display {
	if b.isMine(cell) {
		return ShowMine
	}
	return ShowNumber(b.adjacency[cell])
}

func (b *Board) displayOf(cell int) Display {
	switch b.visibility[cell] {
	case Flagged:
		return ShowFlag
	case Revealed:
		return b.valueOf(cell)
	default:
		return ShowHidden
	}
}

func (b *Board) FlagCount() int {
	flags := 0
	for _, v := range b.visibility {
		if v == Flagged {
			flags++
		}
	}
	return flags
}
