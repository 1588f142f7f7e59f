package saves

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tomasstrnad1997/minesweeper/mines"
)

var ErrNotFound = errors.New("saved game not found")

// SavedGame is a stored game. State is the raw snapshot dump.
type SavedGame struct {
	ID        uuid.UUID
	PlayerID  uint32
	Level     mines.Level
	Outcome   mines.Outcome
	State     []byte
	UpdatedAt time.Time
}

// Store keeps games per player. A player can only see and overwrite their
// own games; anything else reports ErrNotFound.
type Store interface {
	SaveGame(ctx context.Context, game SavedGame) error
	LoadGame(ctx context.Context, playerID uint32, id uuid.UUID) (*SavedGame, error)
}
