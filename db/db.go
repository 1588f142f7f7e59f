package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/players"
	"github.com/tomasstrnad1997/minesweeper/saves"
)

//go:embed schema.sql
var ddl string

const (
	playersTable    = "players"
	colPlayerID     = "id"
	colUsername     = "username"
	colPasswordHash = "password_hash"

	savedGamesTable = "saved_games"
	colGameID       = "id"
	colGamePlayer   = "player_id"
	colLevel        = "level"
	colOutcome      = "outcome"
	colState        = "state"
	colUpdatedAt    = "updated_at"
)

type SQLStore struct {
	DB  *sql.DB
	now func() time.Time
}

func InitializeTables(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}

func (store *SQLStore) InitializeTables() error {
	return InitializeTables(store.DB)
}

// InitStore opens the sqlite file at path with foreign keys enforced.
func InitStore(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// Need to ping the database to check if the file could be opened
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{DB: db, now: time.Now}, nil
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

func (s *SQLStore) CreatePlayer(ctx context.Context, name, hash string) error {
	query := sq.Insert(playersTable).
		Columns(colUsername, colPasswordHash).
		Values(name, hash)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}
	if _, err = s.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", players.ErrPlayerExists, name)
		}
		return err
	}
	return nil
}

func (s *SQLStore) FindPlayerByName(ctx context.Context, name string) (*players.Player, error) {
	return s.findPlayer(ctx, sq.Eq{colUsername: name})
}

func (s *SQLStore) FindPlayerByID(ctx context.Context, id uint32) (*players.Player, error) {
	return s.findPlayer(ctx, sq.Eq{colPlayerID: id})
}

func (s *SQLStore) findPlayer(ctx context.Context, where sq.Eq) (*players.Player, error) {
	query := sq.Select(colPlayerID, colUsername, colPasswordHash).
		From(playersTable).
		Where(where)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	var (
		id  int64
		plr players.Player
	)
	err = s.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&id, &plr.Name, &plr.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, players.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	plr.ID = uint32(id)
	return &plr, nil
}

// SaveGame inserts game or overwrites the row with the same id. A row owned
// by another player is left untouched and reported as saves.ErrNotFound.
func (s *SQLStore) SaveGame(ctx context.Context, game saves.SavedGame) error {
	updatedAt := game.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	query := sq.Insert(savedGamesTable).
		Columns(colGameID, colGamePlayer, colLevel, colOutcome, colState, colUpdatedAt).
		Values(game.ID.String(), int64(game.PlayerID), int(game.Level), int(game.Outcome), game.State, updatedAt.UTC()).
		Suffix("ON CONFLICT(" + colGameID + ") DO UPDATE SET " +
			colLevel + " = excluded." + colLevel + ", " +
			colOutcome + " = excluded." + colOutcome + ", " +
			colState + " = excluded." + colState + ", " +
			colUpdatedAt + " = excluded." + colUpdatedAt +
			" WHERE " + savedGamesTable + "." + colGamePlayer + " = excluded." + colGamePlayer)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return err
	}
	result, err := s.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", saves.ErrNotFound, game.ID)
	}
	return nil
}

func (s *SQLStore) LoadGame(ctx context.Context, playerID uint32, id uuid.UUID) (*saves.SavedGame, error) {
	query := sq.Select(colLevel, colOutcome, colState, colUpdatedAt).
		From(savedGamesTable).
		Where(sq.Eq{colGameID: id.String(), colGamePlayer: int64(playerID)})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	var level, outcome int
	game := saves.SavedGame{ID: id, PlayerID: playerID}
	err = s.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&level, &outcome, &game.State, &game.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", saves.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	game.Level = mines.Level(level)
	game.Outcome = mines.Outcome(outcome)
	return &game, nil
}

// ListGames returns a player's saved games, most recent first, without
// their state.
func (s *SQLStore) ListGames(ctx context.Context, playerID uint32) ([]saves.SavedGame, error) {
	query := sq.Select(colGameID, colLevel, colOutcome, colUpdatedAt).
		From(savedGamesTable).
		Where(sq.Eq{colGamePlayer: int64(playerID)}).
		OrderBy(colUpdatedAt + " DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []saves.SavedGame
	for rows.Next() {
		var (
			id             string
			level, outcome int
			game           = saves.SavedGame{PlayerID: playerID}
		)
		if err := rows.Scan(&id, &level, &outcome, &game.UpdatedAt); err != nil {
			return nil, err
		}
		if game.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("saved game with malformed id %q: %w", id, err)
		}
		game.Level = mines.Level(level)
		game.Outcome = mines.Outcome(outcome)
		games = append(games, game)
	}
	return games, rows.Err()
}
