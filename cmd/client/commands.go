package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/protocol"
)

const usage = `commands:
  start [easy|normal|hard]    new game, server default without a level
  custom ROWS COLS MINES      new custom game
  reveal CELL | flag CELL     move on the running game
  register NAME PASSWORD
  login NAME PASSWORD
  save | load GAME_ID
  quit`

// parseCommand turns one input line into an encoded message.
func parseCommand(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "start":
		if len(args) == 0 {
			return protocol.EncodeGameStart(protocol.GameStartRequest{Default: true})
		}
		level, err := mines.ParseLevel(args[0])
		if err != nil {
			return nil, err
		}
		return protocol.EncodeGameStart(protocol.GameStartRequest{Level: level})
	case "custom":
		nums, err := intArgs(args, 3)
		if err != nil {
			return nil, err
		}
		return protocol.EncodeGameStart(protocol.GameStartRequest{
			Level:  mines.Custom,
			Params: mines.GameParams{Rows: nums[0], Cols: nums[1], Mines: nums[2]},
		})
	case "reveal", "flag":
		nums, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		tp := mines.Reveal
		if strings.ToLower(fields[0]) == "flag" {
			tp = mines.Flag
		}
		return protocol.EncodeMove(mines.Move{Cell: nums[0], Type: tp})
	case "register", "login":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s needs a name and a password", fields[0])
		}
		params := protocol.AuthPlayerParams{Name: args[0], Password: args[1]}
		if strings.ToLower(fields[0]) == "register" {
			return protocol.EncodeRegisterPlayerRequest(params)
		}
		return protocol.EncodeAuthRequest(params)
	case "save":
		return protocol.EncodeSaveGameRequest()
	case "load":
		if len(args) != 1 {
			return nil, fmt.Errorf("load needs a game id")
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return protocol.EncodeLoadGameRequest(id)
	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}
}

func intArgs(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d numbers, got %d", n, len(args))
	}
	nums := make([]int, n)
	for i, arg := range args {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return nil, err
		}
		nums[i] = num
	}
	return nums, nil
}

// board is the client copy of what the server has shown so far.
type board struct {
	view *protocol.GameView
}

func (b *board) apply(cells []mines.UpdatedCell) {
	if b.view == nil {
		return
	}
	for _, cell := range cells {
		if cell.Cell >= 0 && cell.Cell < len(b.view.Cells) {
			b.view.Cells[cell.Cell] = cell.Value
		}
	}
}

func cellRune(d mines.Display) rune {
	if n, ok := d.Number(); ok {
		if n == 0 {
			return '.'
		}
		return rune('0' + n)
	}
	switch d {
	case mines.ShowMine:
		return '*'
	case mines.ShowMineBoom:
		return '@'
	case mines.ShowFlag:
		return 'F'
	case mines.ShowFlagError:
		return 'X'
	default:
		return '#'
	}
}

func (b *board) String() string {
	if b.view == nil {
		return "no game"
	}
	var sb strings.Builder
	cols := b.view.Params.Cols
	for i, cell := range b.view.Cells {
		sb.WriteRune(cellRune(cell))
		if (i+1)%cols == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
