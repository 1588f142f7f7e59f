package mines

import "fmt"

// Snapshot is the complete state of a game. Restore(g.Snapshot()) yields a
// game that behaves exactly like g.
type Snapshot struct {
	Level       Level
	Rows        int
	Cols        int
	Mines       int
	Remaining   int
	Detonated   int
	MinesPlaced bool
	Outcome     Outcome
	Adjacency   []int
	Visibility  []Visibility
}

func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		Level:       g.Level,
		Rows:        g.board.Rows,
		Cols:        g.board.Cols,
		Mines:       g.board.Mines,
		Remaining:   g.remaining,
		Detonated:   g.detonated,
		MinesPlaced: g.board.placed,
		Outcome:     g.outcome,
		Adjacency:   append([]int(nil), g.board.adjacency...),
		Visibility:  append([]Visibility(nil), g.board.visibility...),
	}
}

// Restore rebuilds a game from a snapshot after checking that the snapshot
// describes a reachable state. Hooks are not carried over.
func Restore(s Snapshot, rng Rand) (*Game, error) {
	if err := validateParams(s.Rows, s.Cols, s.Mines); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSnapshot, err)
	}
	if rng == nil {
		rng = NewRand()
	}
	board := &Board{
		Rows:       s.Rows,
		Cols:       s.Cols,
		Mines:      s.Mines,
		adjacency:  append([]int(nil), s.Adjacency...),
		visibility: append([]Visibility(nil), s.Visibility...),
		placed:     s.MinesPlaced,
	}
	return &Game{
		Level:     s.Level,
		board:     board,
		remaining: s.Remaining,
		outcome:   s.Outcome,
		detonated: s.Detonated,
		rng:       rng,
	}, nil
}

func (s *Snapshot) validate() error {
	size := s.Rows * s.Cols
	if len(s.Adjacency) != size || len(s.Visibility) != size {
		return fmt.Errorf("expected %d cells, got %d adjacency and %d visibility entries", size, len(s.Adjacency), len(s.Visibility))
	}
	if s.Level > Custom {
		return fmt.Errorf("unknown level %d", s.Level)
	}
	if s.Outcome > Lost {
		return fmt.Errorf("unknown outcome %d", s.Outcome)
	}
	for cell, v := range s.Visibility {
		if v > Revealed {
			return fmt.Errorf("cell %d has unknown visibility %d", cell, v)
		}
	}
	if !s.MinesPlaced {
		return s.validateUnplaced()
	}

	seen := make([]bool, s.Mines+1)
	layout := &Board{Rows: s.Rows, Cols: s.Cols}
	revealedSafe := 0
	for cell, value := range s.Adjacency {
		if value < 0 {
			k := -value
			if k > s.Mines || seen[k] {
				return fmt.Errorf("cell %d has mine number %d", cell, k)
			}
			seen[k] = true
			continue
		}
		want := 0
		for _, n := range layout.neighbours(cell) {
			if s.Adjacency[n] < 0 {
				want++
			}
		}
		if value != want {
			return fmt.Errorf("cell %d counts %d mines, has %d", cell, value, want)
		}
		if s.Visibility[cell] == Revealed {
			revealedSafe++
		}
	}
	for k := 1; k <= s.Mines; k++ {
		if !seen[k] {
			return fmt.Errorf("expected %d mines, mine number %d is missing", s.Mines, k)
		}
	}
	if s.Remaining != size-s.Mines-revealedSafe {
		return fmt.Errorf("remaining safe cells %d, board says %d", s.Remaining, size-s.Mines-revealedSafe)
	}

	switch s.Outcome {
	case Lost:
		if s.Detonated < 0 || s.Detonated >= size || s.Adjacency[s.Detonated] >= 0 || s.Visibility[s.Detonated] != Revealed {
			return fmt.Errorf("lost game without a revealed detonated mine (%d)", s.Detonated)
		}
		for cell, value := range s.Adjacency {
			if value < 0 && s.Visibility[cell] == Hidden {
				return fmt.Errorf("lost game with hidden mine %d", cell)
			}
		}
	case Won:
		if s.Remaining != 0 || s.Detonated != -1 {
			return fmt.Errorf("won game with %d safe cells left", s.Remaining)
		}
	default:
		if s.Remaining == 0 || s.Detonated != -1 {
			return fmt.Errorf("game in progress with %d safe cells left and detonated cell %d", s.Remaining, s.Detonated)
		}
		for cell, value := range s.Adjacency {
			if value < 0 && s.Visibility[cell] == Revealed {
				return fmt.Errorf("game in progress with revealed mine %d", cell)
			}
		}
	}
	return nil
}

func (s *Snapshot) validateUnplaced() error {
	if s.Outcome != InProgress || s.Detonated != -1 {
		return fmt.Errorf("game ended before any mine was placed")
	}
	if s.Remaining != s.Rows*s.Cols-s.Mines {
		return fmt.Errorf("remaining safe cells %d before the first reveal", s.Remaining)
	}
	for cell := range s.Adjacency {
		if s.Adjacency[cell] != 0 {
			return fmt.Errorf("cell %d has adjacency %d before placement", cell, s.Adjacency[cell])
		}
		if s.Visibility[cell] == Revealed {
			return fmt.Errorf("cell %d revealed before placement", cell)
		}
	}
	return nil
}
