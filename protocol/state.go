package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tomasstrnad1997/minesweeper/mines"
)

// GameView is what a player may see of a game: the parameters and the
// display of every cell. Mine positions stay on the server.
type GameView struct {
	Level   mines.Level
	Outcome mines.Outcome
	Params  mines.GameParams
	Cells   []mines.Display
}

func NewGameView(game *mines.Game) GameView {
	return GameView{
		Level:   game.Level,
		Outcome: game.Outcome(),
		Params:  game.Params(),
		Cells:   game.Cells(),
	}
}

const gameViewHeaderLength = 1 + 1 + 3*4

func EncodeGameState(view GameView) ([]byte, error) {
	if len(view.Cells) != view.Params.Rows*view.Params.Cols {
		return nil, fmt.Errorf("Game view has %d cells for a %dx%d board", len(view.Cells), view.Params.Rows, view.Params.Cols)
	}
	buf, err := newMessage(GameState, gameViewHeaderLength+len(view.Cells))
	if err != nil {
		return nil, err
	}
	buf.WriteByte(byte(view.Level))
	buf.WriteByte(byte(view.Outcome))
	buf.Write(intToBytes(view.Params.Rows))
	buf.Write(intToBytes(view.Params.Cols))
	buf.Write(intToBytes(view.Params.Mines))
	for _, cell := range view.Cells {
		buf.WriteByte(byte(cell))
	}
	return buf.Bytes(), nil
}

func DecodeGameState(data []byte) (*GameView, error) {
	payloadLength, err := checkAndDecodeLength(data, GameState)
	if err != nil {
		return nil, err
	}
	if payloadLength < gameViewHeaderLength {
		return nil, ErrInvalidPayloadSize
	}
	payload := data[HeaderLength:]
	view := &GameView{
		Level:   mines.Level(payload[0]),
		Outcome: mines.Outcome(payload[1]),
		Params: mines.GameParams{
			Rows:  bytesToInt(payload[2:6]),
			Cols:  bytesToInt(payload[6:10]),
			Mines: bytesToInt(payload[10:14]),
		},
	}
	cells := payload[gameViewHeaderLength:]
	if uint64(len(cells)) != uint64(uint32(view.Params.Rows))*uint64(uint32(view.Params.Cols)) {
		return nil, fmt.Errorf("Number of cells doesnt match board size")
	}
	view.Cells = make([]mines.Display, len(cells))
	for i, b := range cells {
		view.Cells[i] = mines.Display(b)
		if !view.Cells[i].Valid() {
			return nil, fmt.Errorf("cell %d has unknown value %s", i, view.Cells[i])
		}
	}
	return view, nil
}

const (
	snapshotVersion      byte = 1
	snapshotHeaderLength      = 1 + 1 + 4*5 + 1 + 1
	snapshotCellLength        = 5
)

// MarshalSnapshot dumps every field of a game, mine layout included. It is
// meant for storage, never for players.
func MarshalSnapshot(s mines.Snapshot) ([]byte, error) {
	size := s.Rows * s.Cols
	if s.Rows <= 0 || s.Cols <= 0 || len(s.Adjacency) != size || len(s.Visibility) != size {
		return nil, fmt.Errorf("Cannot dump snapshot of a %dx%d board with %d/%d cells", s.Rows, s.Cols, len(s.Adjacency), len(s.Visibility))
	}
	var buf bytes.Buffer
	buf.Grow(snapshotHeaderLength + size*snapshotCellLength)
	buf.WriteByte(snapshotVersion)
	buf.WriteByte(byte(s.Level))
	for _, v := range []int{s.Rows, s.Cols, s.Mines, s.Remaining, s.Detonated} {
		if err := binary.Write(&buf, binary.BigEndian, int32(v)); err != nil {
			return nil, err
		}
	}
	var placed byte
	if s.MinesPlaced {
		placed = 1
	}
	buf.WriteByte(placed)
	buf.WriteByte(byte(s.Outcome))
	for cell := range size {
		if err := binary.Write(&buf, binary.BigEndian, int32(s.Adjacency[cell])); err != nil {
			return nil, err
		}
		buf.WriteByte(byte(s.Visibility[cell]))
	}
	return buf.Bytes(), nil
}

// UnmarshalSnapshot reads a dump written by MarshalSnapshot. Only the layout
// is checked here; mines.Restore checks that the game itself makes sense.
func UnmarshalSnapshot(data []byte) (mines.Snapshot, error) {
	if len(data) < snapshotHeaderLength {
		return mines.Snapshot{}, fmt.Errorf("%w: snapshot has %d bytes", ErrInvalidPayloadSize, len(data))
	}
	if data[0] != snapshotVersion {
		return mines.Snapshot{}, fmt.Errorf("unknown snapshot version %d", data[0])
	}
	field := func(i int) int {
		offset := 2 + 4*i
		return int(int32(binary.BigEndian.Uint32(data[offset : offset+4])))
	}
	s := mines.Snapshot{
		Level:       mines.Level(data[1]),
		Rows:        field(0),
		Cols:        field(1),
		Mines:       field(2),
		Remaining:   field(3),
		Detonated:   field(4),
		MinesPlaced: data[22] == 1,
		Outcome:     mines.Outcome(data[23]),
	}
	if s.Rows <= 0 || s.Cols <= 0 {
		return mines.Snapshot{}, fmt.Errorf("snapshot of a %dx%d board", s.Rows, s.Cols)
	}
	cells := data[snapshotHeaderLength:]
	size := uint64(s.Rows) * uint64(s.Cols)
	if uint64(len(cells)) != size*snapshotCellLength {
		return mines.Snapshot{}, fmt.Errorf("%w: %d bytes for %d cells", ErrInvalidPayloadSize, len(cells), size)
	}
	s.Adjacency = make([]int, size)
	s.Visibility = make([]mines.Visibility, size)
	for cell := range s.Adjacency {
		offset := cell * snapshotCellLength
		s.Adjacency[cell] = int(int32(binary.BigEndian.Uint32(cells[offset : offset+4])))
		s.Visibility[cell] = mines.Visibility(cells[offset+4])
	}
	return s, nil
}
