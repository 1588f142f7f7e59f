package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/protocol"
)

var log = logrus.New()

func main() {
	addr := flag.String("addr", "127.0.0.1:42069", "game server address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, *addr)
	stop()
	if err != nil {
		log.WithError(err).Fatal("Client failed")
	}
}

func run(ctx context.Context, addr string) error {
	controller, err := protocol.Dial(ctx, addr, log)
	if err != nil {
		return err
	}
	defer controller.Close()
	registerHandlers(controller, &board{})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()

	fmt.Println(usage)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) || errors.Is(err, protocol.ErrControllerClosed) {
				return nil
			}
			return err
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			message, err := parseCommand(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := controller.SendMessage(message); err != nil {
				return err
			}
		}
	}
}

// registerHandlers prints what the server sends. They all run on the
// controller's read loop, so b needs no locking.
func registerHandlers(controller *protocol.Controller, b *board) {
	controller.RegisterHandler(protocol.TextMessage, func(data []byte) error {
		text, err := protocol.DecodeTextMessage(data)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	})
	controller.RegisterHandler(protocol.GameState, func(data []byte) error {
		view, err := protocol.DecodeGameState(data)
		if err != nil {
			return err
		}
		b.view = view
		fmt.Printf("%s game %dx%d with %d mines\n%s", view.Level, view.Params.Rows, view.Params.Cols, view.Params.Mines, b)
		return nil
	})
	controller.RegisterHandler(protocol.CellUpdate, func(data []byte) error {
		cells, err := protocol.DecodeCellUpdates(data)
		if err != nil {
			return err
		}
		b.apply(cells)
		fmt.Print(b)
		return nil
	})
	controller.RegisterHandler(protocol.GameEnd, func(data []byte) error {
		end, err := protocol.DecodeGameEnd(data)
		if err != nil {
			return err
		}
		switch end {
		case protocol.Win:
			fmt.Println("You won")
		case protocol.Loss:
			fmt.Println("You lost")
		default:
			fmt.Println("Game aborted")
		}
		return nil
	})
	controller.RegisterHandler(protocol.SaveGameResponse, func(data []byte) error {
		id, err := protocol.DecodeSaveGameResponse(data)
		if err != nil {
			return err
		}
		fmt.Printf("Saved as %s\n", id)
		return nil
	})
	controller.RegisterHandler(protocol.RegisterPlayerResponse, func(data []byte) error {
		ok, err := protocol.DecodeRegisterPlayerResponse(data)
		if err != nil {
			return err
		}
		if ok {
			fmt.Println("Registered")
		}
		return nil
	})
	controller.RegisterHandler(protocol.AuthResponseMessage, func(data []byte) error {
		response, err := protocol.DecodeAuthResponse(data)
		if err != nil {
			return err
		}
		if !response.Success {
			fmt.Println("Login failed")
			return nil
		}
		fmt.Printf("Logged in as %s\n", response.Player.Name)
		return nil
	})
}
