package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/config"
	"github.com/tomasstrnad1997/minesweeper/db"
)

var log = logrus.New()

func main() {
	envFile := flag.String("env", ".env", "file with environment variables")
	list := flag.String("list", "", "list saved games of this player instead of creating tables")
	flag.Parse()

	if err := run(context.Background(), *envFile, *list); err != nil {
		log.WithError(err).Fatal("Database command failed")
	}
}

func run(ctx context.Context, envFile, player string) error {
	path, err := config.DBPath(envFile)
	if err != nil {
		return err
	}
	store, err := db.InitStore(path)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	if player == "" {
		if err := store.InitializeTables(); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
		log.WithField("path", path).Info("Tables created")
		return nil
	}

	found, err := store.FindPlayerByName(ctx, player)
	if err != nil {
		return fmt.Errorf("failed to find player %q: %w", player, err)
	}
	games, err := store.ListGames(ctx, found.ID)
	if err != nil {
		return fmt.Errorf("failed to list games: %w", err)
	}
	for _, game := range games {
		fmt.Printf("%s\t%-6s\t%-10s\t%s\n", game.ID, game.Level, game.Outcome, game.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
