package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/config"
	"github.com/tomasstrnad1997/minesweeper/db"
	"github.com/tomasstrnad1997/minesweeper/players"
	"github.com/tomasstrnad1997/minesweeper/server"
)

var log = logrus.New()

func main() {
	envFile := flag.String("env", ".env", "file with environment variables")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *envFile)
	stop()
	if err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}

func run(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log.SetLevel(cfg.LogLevel)

	store, err := db.InitStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()
	if err := store.InitializeTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	srv, err := server.CreateServer(server.Options{
		Addr:         cfg.Addr,
		Players:      players.NewService(store, cfg.AuthSecret, cfg.TokenTTL),
		Games:        store,
		DefaultLevel: cfg.DefaultLevel,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
