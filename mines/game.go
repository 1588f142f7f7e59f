package mines

import "fmt"

type Outcome byte

const (
	InProgress Outcome = iota
	Won
	Lost
)

func (o Outcome) String() string {
	switch o {
	case InProgress:
		return "InProgress"
	case Won:
		return "Won"
	case Lost:
		return "Lost"
	default:
		return fmt.Sprintf("Outcome(%d)", byte(o))
	}
}

type MoveType byte

const (
	Reveal MoveType = 0x01
	Flag   MoveType = 0x02
)

type Move struct {
	Cell int
	Type MoveType
}

func (move Move) String() string {
	msg := fmt.Sprintf("(%d) ", move.Cell)
	switch move.Type {
	case Reveal:
		return msg + "Reveal"
	case Flag:
		return msg + "Flag"
	default:
		return msg + "UNKNOWN"
	}
}

// Hooks are called synchronously, at most once per game, when the game is
// won or lost.
type Hooks struct {
	OnWin  func()
	OnLoss func()
}

// Game runs the rules on top of a Board. It is not safe for concurrent use.
type Game struct {
	Level Level

	board     *Board
	remaining int
	outcome   Outcome
	detonated int
	rng       Rand
	hooks     Hooks
}

// NewGame starts a game on one of the presets. A nil rng picks a random seed.
func NewGame(level Level, rng Rand) (*Game, error) {
	params, err := level.Params()
	if err != nil {
		return nil, err
	}
	game, err := CreateGame(params, rng)
	if err != nil {
		return nil, err
	}
	game.Level = level
	return game, nil
}

func CreateGame(params GameParams, rng Rand) (*Game, error) {
	board, err := NewBoard(params.Rows, params.Cols, params.Mines)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand()
	}
	return &Game{
		Level:     Custom,
		board:     board,
		remaining: board.Size() - board.Mines,
		outcome:   InProgress,
		detonated: -1,
		rng:       rng,
	}, nil
}

func (g *Game) SetHooks(hooks Hooks) {
	g.hooks = hooks
}

func (g *Game) Board() *Board {
	return g.board
}

func (g *Game) Params() GameParams {
	return GameParams{Rows: g.board.Rows, Cols: g.board.Cols, Mines: g.board.Mines}
}

func (g *Game) Outcome() Outcome {
	return g.outcome
}

func (g *Game) Finished() bool {
	return g.outcome != InProgress
}

func (g *Game) RemainingSafeCells() int {
	return g.remaining
}

func (g *Game) MinesPlaced() bool {
	return g.board.placed
}

// Detonated returns the mine that ended the game, if any.
func (g *Game) Detonated() (int, bool) {
	return g.detonated, g.detonated >= 0
}

// MinesLeft is the mine count minus the flags currently placed. It goes
// negative when the player over-flags.
func (g *Game) MinesLeft() int {
	return g.board.Mines - g.board.FlagCount()
}

func (g *Game) MakeMove(move Move) ([]UpdatedCell, error) {
	switch move.Type {
	case Reveal:
		return g.HandleReveal(move.Cell)
	case Flag:
		return g.HandleFlagToggle(move.Cell)
	default:
		return nil, fmt.Errorf("Invalid move type %x", move.Type)
	}
}

// HandleReveal opens cell and returns every cell whose display changed.
// Mines are laid out on the first reveal so that cell is never a mine.
func (g *Game) HandleReveal(cell int) ([]UpdatedCell, error) {
	if err := g.board.checkCell(cell); err != nil {
		return nil, err
	}
	if g.outcome != InProgress || g.board.visibility[cell] != Hidden {
		return nil, nil
	}
	if !g.board.placed {
		if err := g.board.PlaceMines(cell, g.board.Mines, g.rng); err != nil {
			return nil, err
		}
	}
	if g.board.isMine(cell) {
		return g.detonate(cell), nil
	}
	updated := g.expand(cell)
	if g.remaining == 0 {
		g.outcome = Won
		if g.hooks.OnWin != nil {
			g.hooks.OnWin()
		}
	}
	return updated, nil
}

// expand reveals start and, through every zero cell it meets, the connected
// zero region and its numbered border. Flagged cells are neither revealed
// nor crossed.
func (g *Game) expand(start int) []UpdatedCell {
	var updated []UpdatedCell
	stack := []int{start}
	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if g.board.visibility[cell] != Hidden {
			continue
		}
		g.board.visibility[cell] = Revealed
		g.remaining--
		updated = append(updated, UpdatedCell{Cell: cell, Value: g.board.valueOf(cell)})
		if g.board.adjacency[cell] != 0 {
			continue
		}
		neighbours := g.board.neighbours(cell)
		// Pushed in reverse so they are visited clockwise from the top.
		for i := len(neighbours) - 1; i >= 0; i-- {
			if g.board.visibility[neighbours[i]] == Hidden {
				stack = append(stack, neighbours[i])
			}
		}
	}
	return updated
}

func (g *Game) detonate(cell int) []UpdatedCell {
	g.detonated = cell
	g.outcome = Lost
	g.board.visibility[cell] = Revealed
	updated := []UpdatedCell{{Cell: cell, Value: ShowMineBoom}}
	for i := range g.board.adjacency {
		if i == cell {
			continue
		}
		switch {
		case g.board.visibility[i] == Flagged:
			if !g.board.isMine(i) {
				updated = append(updated, UpdatedCell{Cell: i, Value: ShowFlagError})
			}
		case g.board.isMine(i):
			g.board.visibility[i] = Revealed
			updated = append(updated, UpdatedCell{Cell: i, Value: ShowMine})
		}
	}
	if g.hooks.OnLoss != nil {
		g.hooks.OnLoss()
	}
	return updated
}

// HandleFlagToggle flips a hidden cell to flagged and back. Revealed cells
// and finished games are left alone.
func (g *Game) HandleFlagToggle(cell int) ([]UpdatedCell, error) {
	if err := g.board.checkCell(cell); err != nil {
		return nil, err
	}
	if g.outcome != InProgress {
		return nil, nil
	}
	switch g.board.visibility[cell] {
	case Revealed:
		return nil, nil
	case Flagged:
		g.board.visibility[cell] = Hidden
		return []UpdatedCell{{Cell: cell, Value: ShowHidden}}, nil
	default:
		g.board.visibility[cell] = Flagged
		return []UpdatedCell{{Cell: cell, Value: ShowFlag}}, nil
	}
}

// DisplayOf is what the collaborator should currently draw for cell.
func (g *Game) DisplayOf(cell int) (Display, error) {
	if err := g.board.checkCell(cell); err != nil {
		return ShowHidden, err
	}
	return g.displayOf(cell), nil
}

func (g *Game) displayOf(cell int) Display {
	switch g.board.visibility[cell] {
	case Flagged:
		if g.outcome == Lost && !g.board.isMine(cell) {
			return ShowFlagError
		}
		return ShowFlag
	case Revealed:
		if cell == g.detonated {
			return ShowMineBoom
		}
		return g.board.valueOf(cell)
	default:
		return ShowHidden
	}
}

// Cells returns the display of every cell in index order.
func (g *Game) Cells() []Display {
	cells := make([]Display, g.board.Size())
	for cell := range cells {
		cells[cell] = g.displayOf(cell)
	}
	return cells
}

// VisibleCells lists every cell that is not plainly hidden, for redrawing a
// board from scratch.
func (g *Game) VisibleCells() []UpdatedCell {
	var cells []UpdatedCell
	for cell, v := range g.board.visibility {
		if v != Hidden {
			cells = append(cells, UpdatedCell{Cell: cell, Value: g.displayOf(cell)})
		}
	}
	return cells
}
