package mines

import "fmt"

// Display is what a collaborator should draw for a cell. Values 0x00-0x08
// are revealed safe cells carrying their adjacency count.
type Display byte

const (
	ShowEmpty     Display = 0x00
	ShowMine      Display = 0x10
	ShowMineBoom  Display = 0x11
	ShowFlag      Display = 0x20
	ShowFlagError Display = 0x21
	ShowHidden    Display = 0x30
)

type UpdatedCell struct {
	Cell  int
	Value Display
}

func ShowNumber(n int) Display {
	return Display(n)
}

// Number reports the adjacency count for a revealed safe cell.
func (d Display) Number() (int, bool) {
	if d <= 8 {
		return int(d), true
	}
	return 0, false
}

func (d Display) Valid() bool {
	switch d {
	case ShowMine, ShowMineBoom, ShowFlag, ShowFlagError, ShowHidden:
		return true
	default:
		return d <= 8
	}
}

func (d Display) String() string {
	switch d {
	case ShowEmpty:
		return "Empty"
	case ShowMine:
		return "Mine"
	case ShowMineBoom:
		return "MineBoom"
	case ShowFlag:
		return "Flag"
	case ShowFlagError:
		return "FlagError"
	case ShowHidden:
		return "Hidden"
	}
	if n, ok := d.Number(); ok {
		return fmt.Sprintf("Number(%d)", n)
	}
	return fmt.Sprintf("Display(0x%02x)", byte(d))
}
