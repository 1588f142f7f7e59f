package protocol_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/protocol"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestControllerDispatchesAndSends(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	controller := protocol.NewController(client, quietLogger())

	texts := make(chan string, 1)
	controller.RegisterHandler(protocol.TextMessage, func(data []byte) error {
		text, err := protocol.DecodeTextMessage(data)
		texts <- text
		return err
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()

	// No handler for GameEnd: logged and skipped.
	end, _ := protocol.EncodeGameEnd(protocol.Win)
	if _, err := server.Write(end); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	text, _ := protocol.EncodeTextMessage("Welcome")
	if _, err := server.Write(text); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	select {
	case got := <-texts:
		if got != "Welcome" {
			t.Fatalf("Handler got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Text handler was not called")
	}

	move, _ := protocol.EncodeMove(mines.Move{Cell: 12, Type: mines.Reveal})
	if err := controller.SendMessage(move); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	received, err := protocol.ReadMessage(server)
	if err != nil {
		t.Fatalf("Failed to read sent message: %v", err)
	}
	if !bytes.Equal(received, move) {
		t.Fatalf("Server received %v, want %v", received, move)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
	if err := controller.SendMessage(move); !errors.Is(err, protocol.ErrControllerClosed) {
		t.Fatalf("Expected ErrControllerClosed, got: %v", err)
	}
}

func TestControllerStopsWhenServerHangsUp(t *testing.T) {
	client, server := net.Pipe()
	controller := protocol.NewController(client, quietLogger())
	done := make(chan error, 1)
	go func() { done <- controller.Run(context.Background()) }()
	server.Close()
	select {
	case err := <-done:
		if !errors.Is(err, protocol.ErrControllerClosed) {
			t.Fatalf("Run returned %v, want ErrControllerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after hang up")
	}
}
