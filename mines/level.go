package mines

import (
	"fmt"
	"strings"
)

type Level byte

const (
	Easy Level = iota
	Normal
	Hard
	Custom
)

// Mine densities in thousandths of a percent.
const (
	defaultDensity = 15625
	hardDensity    = 20625
)

type GameParams struct {
	Rows  int
	Cols  int
	Mines int
}

var levelNames = map[Level]string{
	Easy:   "easy",
	Normal: "normal",
	Hard:   "hard",
	Custom: "custom",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", byte(l))
}

func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for level, levelName := range levelNames {
		if level != Custom && levelName == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Params returns the fixed board size of a preset. The mine count is
// floor(cells * density), with the higher density only on Hard.
func (l Level) Params() (GameParams, error) {
	var rows, cols int
	switch l {
	case Easy:
		rows, cols = 8, 8
	case Normal:
		rows, cols = 16, 16
	case Hard:
		rows, cols = 16, 30
	default:
		return GameParams{}, fmt.Errorf("level %s has no preset", l)
	}
	density := defaultDensity
	if l == Hard {
		density = hardDensity
	}
	return GameParams{Rows: rows, Cols: cols, Mines: rows * cols * density / 100000}, nil
}
