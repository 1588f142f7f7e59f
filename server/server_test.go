package server_test

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/db"
	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/players"
	"github.com/tomasstrnad1997/minesweeper/protocol"
	"github.com/tomasstrnad1997/minesweeper/server"
)

// identityRand leaves the candidate order alone, so mines fill the lowest
// cells other than the first click.
type identityRand struct{}

func (identityRand) Shuffle(n int, swap func(i, j int)) {}

func startServer(t *testing.T) string {
	t.Helper()
	store, err := db.InitStore(filepath.Join(t.TempDir(), "mines.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InitializeTables(); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv, err := server.CreateServer(server.Options{
		Addr:         "127.0.0.1:0",
		Players:      players.NewService(store, []byte("SECRET"), time.Hour),
		Games:        store,
		DefaultLevel: mines.Easy,
		Logger:       logger,
		Rand:         func() mines.Rand { return identityRand{} },
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Server did not stop")
		}
	})
	return srv.Addr().String()
}

type testClient struct {
	t    *testing.T
	conn net.Conn
}

func connect(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(message []byte, err error) {
	c.t.Helper()
	if err != nil {
		c.t.Fatalf("Failed to encode message: %v", err)
	}
	if _, err := c.conn.Write(message); err != nil {
		c.t.Fatalf("Failed to send message: %v", err)
	}
}

func (c *testClient) expect(msgType protocol.MessageType) []byte {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	message, err := protocol.ReadMessage(c.conn)
	if err != nil {
		c.t.Fatalf("Failed to read %s: %v", msgType, err)
	}
	if got := protocol.MessageType(message[0]); got != msgType {
		if got == protocol.TextMessage {
			text, _ := protocol.DecodeTextMessage(message)
			c.t.Fatalf("Expected %s, got text %q", msgType, text)
		}
		c.t.Fatalf("Expected %s, got %s", msgType, got)
	}
	return message
}

func (c *testClient) expectText(prefix string) string {
	c.t.Helper()
	text, err := protocol.DecodeTextMessage(c.expect(protocol.TextMessage))
	if err != nil {
		c.t.Fatalf("Failed to decode text: %v", err)
	}
	if !strings.HasPrefix(text, prefix) {
		c.t.Fatalf("Text %q does not start with %q", text, prefix)
	}
	return text
}

func (c *testClient) expectState() *protocol.GameView {
	c.t.Helper()
	view, err := protocol.DecodeGameState(c.expect(protocol.GameState))
	if err != nil {
		c.t.Fatalf("Failed to decode game state: %v", err)
	}
	return view
}

func (c *testClient) expectUpdates() []mines.UpdatedCell {
	c.t.Helper()
	cells, err := protocol.DecodeCellUpdates(c.expect(protocol.CellUpdate))
	if err != nil {
		c.t.Fatalf("Failed to decode cell updates: %v", err)
	}
	return cells
}

func (c *testClient) expectEnd(want protocol.GameEndType) {
	c.t.Helper()
	got, err := protocol.DecodeGameEnd(c.expect(protocol.GameEnd))
	if err != nil || got != want {
		c.t.Fatalf("Game ended with %d (%v), want %d", got, err, want)
	}
}

func (c *testClient) startCustom(rows, cols, mineCount int) *protocol.GameView {
	c.t.Helper()
	c.send(protocol.EncodeGameStart(protocol.GameStartRequest{
		Level:  mines.Custom,
		Params: mines.GameParams{Rows: rows, Cols: cols, Mines: mineCount},
	}))
	return c.expectState()
}

func (c *testClient) move(cell int, tp mines.MoveType) {
	c.t.Helper()
	c.send(protocol.EncodeMove(mines.Move{Cell: cell, Type: tp}))
}

func (c *testClient) login(name, password string) *protocol.AuthResponse {
	c.t.Helper()
	c.send(protocol.EncodeAuthRequest(protocol.AuthPlayerParams{Name: name, Password: password}))
	response, err := protocol.DecodeAuthResponse(c.expect(protocol.AuthResponseMessage))
	if err != nil {
		c.t.Fatalf("Failed to decode auth response: %v", err)
	}
	return response
}

func (c *testClient) register(name, password string) bool {
	c.t.Helper()
	c.send(protocol.EncodeRegisterPlayerRequest(protocol.AuthPlayerParams{Name: name, Password: password}))
	ok, err := protocol.DecodeRegisterPlayerResponse(c.expect(protocol.RegisterPlayerResponse))
	if err != nil {
		c.t.Fatalf("Failed to decode register response: %v", err)
	}
	return ok
}

func sortedCells(cells []mines.UpdatedCell) []int {
	var out []int
	for _, cell := range cells {
		out = append(out, cell.Cell)
	}
	slices.Sort(out)
	return out
}

func TestCustomGameWin(t *testing.T) {
	client := connect(t, startServer(t))
	view := client.startCustom(3, 3, 3)
	if view.Level != mines.Custom || view.Outcome != mines.InProgress || len(view.Cells) != 9 {
		t.Fatalf("Unexpected game state %+v", view)
	}
	for cell, value := range view.Cells {
		if value != mines.ShowHidden {
			t.Fatalf("Cell %d starts as %s", cell, value)
		}
	}

	// Mines land on 0, 1 and 2, so revealing 8 opens the whole bottom.
	client.move(8, mines.Reveal)
	updated := client.expectUpdates()
	if got := sortedCells(updated); !slices.Equal(got, []int{3, 4, 5, 6, 7, 8}) {
		t.Fatalf("Revealed %v", got)
	}
	for _, cell := range updated {
		if cell.Cell == 4 && cell.Value != mines.ShowNumber(3) {
			t.Fatalf("Centre shows %s", cell.Value)
		}
	}
	client.expectEnd(protocol.Win)

	// Moves on a finished game produce nothing; the next reply is the new
	// game without an Aborted notice.
	client.move(0, mines.Reveal)
	client.send(protocol.EncodeGameStart(protocol.GameStartRequest{Default: true}))
	view = client.expectState()
	if view.Level != mines.Easy || view.Params.Rows != 8 || view.Params.Mines != 10 {
		t.Fatalf("Default game is %+v", view.Params)
	}
}

func TestLossRevealsMines(t *testing.T) {
	client := connect(t, startServer(t))
	client.startCustom(3, 3, 3)

	client.move(0, mines.Reveal)
	updated := client.expectUpdates()
	if !slices.Equal(updated, []mines.UpdatedCell{{Cell: 0, Value: mines.ShowNumber(2)}}) {
		t.Fatalf("First reveal gave %v", updated)
	}
	client.move(8, mines.Flag)
	if updated := client.expectUpdates(); !slices.Equal(updated, []mines.UpdatedCell{{Cell: 8, Value: mines.ShowFlag}}) {
		t.Fatalf("Flag gave %v", updated)
	}

	client.move(1, mines.Reveal)
	want := []mines.UpdatedCell{
		{Cell: 1, Value: mines.ShowMineBoom},
		{Cell: 2, Value: mines.ShowMine},
		{Cell: 3, Value: mines.ShowMine},
		{Cell: 8, Value: mines.ShowFlagError},
	}
	if updated := client.expectUpdates(); !slices.Equal(updated, want) {
		t.Fatalf("Loss gave %v, want %v", updated, want)
	}
	client.expectEnd(protocol.Loss)
}

func TestStartGameAbortsRunningGame(t *testing.T) {
	client := connect(t, startServer(t))
	client.send(protocol.EncodeGameStart(protocol.GameStartRequest{Default: true}))
	client.expectState()
	client.move(0, mines.Reveal)
	client.expectUpdates()

	client.send(protocol.EncodeGameStart(protocol.GameStartRequest{Level: mines.Hard}))
	client.expectEnd(protocol.Aborted)
	view := client.expectState()
	if view.Level != mines.Hard || view.Params != (mines.GameParams{Rows: 16, Cols: 30, Mines: 99}) {
		t.Fatalf("Hard game is %s %+v", view.Level, view.Params)
	}
}

func TestErrorsKeepConnection(t *testing.T) {
	client := connect(t, startServer(t))
	client.move(0, mines.Reveal)
	client.expectText("Game not running")

	client.startCustom(2, 2, 1)
	client.move(4, mines.Reveal)
	client.expectText("Error: Move out of range")

	client.send([]byte{0x55, 0, 0, 0, 0, 0}, nil)
	client.expectText("Error: No handler registered")

	client.send(protocol.EncodeGameStart(protocol.GameStartRequest{
		Level:  mines.Custom,
		Params: mines.GameParams{Rows: 2, Cols: 2, Mines: 4},
	}))
	client.expectText("Error: Not enough space")

	client.send(protocol.EncodeGameStart(protocol.GameStartRequest{
		Level:  mines.Custom,
		Params: mines.GameParams{Rows: 1000, Cols: 1000, Mines: 1},
	}))
	client.expectText("Error: Custom board")

	client.send(protocol.EncodeSaveGameRequest())
	client.expectText("Error: log in first")

	client.move(0, mines.Flag)
	if updated := client.expectUpdates(); len(updated) != 1 || updated[0].Value != mines.ShowFlag {
		t.Fatalf("Flag after errors gave %v", updated)
	}
}

func TestSaveAndLoad(t *testing.T) {
	addr := startServer(t)
	client := connect(t, addr)

	if !client.register("John", "hunter22") {
		t.Fatalf("Registration failed")
	}
	if client.register("John", "hunter22") {
		t.Fatalf("Duplicate registration succeeded")
	}
	client.expectText("Error: Failed to register")
	if client.login("John", "wrong").Success {
		t.Fatalf("Login with a wrong password succeeded")
	}
	auth := client.login("John", "hunter22")
	if !auth.Success || auth.Player.Name != "John" || auth.Token == nil {
		t.Fatalf("Login failed: %+v", auth)
	}

	client.startCustom(3, 3, 3)
	client.move(0, mines.Reveal)
	client.expectUpdates()
	client.move(8, mines.Flag)
	client.expectUpdates()

	client.send(protocol.EncodeSaveGameRequest())
	id, err := protocol.DecodeSaveGameResponse(client.expect(protocol.SaveGameResponse))
	if err != nil || id == uuid.Nil {
		t.Fatalf("Save returned %v, %v", id, err)
	}
	client.send(protocol.EncodeSaveGameRequest())
	again, _ := protocol.DecodeSaveGameResponse(client.expect(protocol.SaveGameResponse))
	if again != id {
		t.Fatalf("Second save got id %s, want %s", again, id)
	}

	client.move(1, mines.Reveal)
	client.expectUpdates()
	client.expectEnd(protocol.Loss)

	client.send(protocol.EncodeLoadGameRequest(id))
	view := client.expectState()
	if view.Outcome != mines.InProgress || view.Cells[0] != mines.ShowNumber(2) || view.Cells[8] != mines.ShowFlag {
		t.Fatalf("Loaded game shows %v", view.Cells)
	}
	for _, cell := range []int{1, 2, 3, 4, 5, 6, 7} {
		if view.Cells[cell] != mines.ShowHidden {
			t.Fatalf("Loaded cell %d shows %s", cell, view.Cells[cell])
		}
	}
	client.move(4, mines.Reveal)
	if updated := client.expectUpdates(); !slices.Equal(updated, []mines.UpdatedCell{{Cell: 4, Value: mines.ShowNumber(3)}}) {
		t.Fatalf("Reveal after load gave %v", updated)
	}

	// A new connection resumes with the token instead of the password.
	resumed := connect(t, addr)
	resumed.send(protocol.EncodeAuthWithToken(*auth.Token))
	reauth, err := protocol.DecodeAuthResponse(resumed.expect(protocol.AuthResponseMessage))
	if err != nil || !reauth.Success || reauth.Player.ID != auth.Player.ID {
		t.Fatalf("Token auth failed: %+v, %v", reauth, err)
	}
	resumed.send(protocol.EncodeLoadGameRequest(id))
	if view := resumed.expectState(); view.Cells[4] != mines.ShowHidden {
		t.Fatalf("Load returned the unsaved reveal")
	}

	other := connect(t, addr)
	if !other.register("Jane", "hunter33") {
		t.Fatalf("Registration failed")
	}
	other.login("Jane", "hunter33")
	other.send(protocol.EncodeLoadGameRequest(id))
	other.expectText("Error: Failed to load game")
}

func TestForgedTokenIsRejected(t *testing.T) {
	client := connect(t, startServer(t))
	forged, _ := players.GenerateAuthToken(&players.Player{ID: 1}, []byte("NOT THE SECRET"), time.Hour)
	client.send(protocol.EncodeAuthWithToken(forged))
	response, err := protocol.DecodeAuthResponse(client.expect(protocol.AuthResponseMessage))
	if err != nil || response.Success {
		t.Fatalf("Forged token accepted: %+v, %v", response, err)
	}
}

func TestControllerPlaysGame(t *testing.T) {
	addr := startServer(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	controller, err := protocol.Dial(ctx, addr, logger)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	states := make(chan *protocol.GameView, 1)
	updates := make(chan []mines.UpdatedCell, 1)
	ends := make(chan protocol.GameEndType, 1)
	controller.RegisterHandler(protocol.GameState, func(data []byte) error {
		view, err := protocol.DecodeGameState(data)
		if err != nil {
			return err
		}
		states <- view
		return nil
	})
	controller.RegisterHandler(protocol.CellUpdate, func(data []byte) error {
		cells, err := protocol.DecodeCellUpdates(data)
		if err != nil {
			return err
		}
		updates <- cells
		return nil
	})
	controller.RegisterHandler(protocol.GameEnd, func(data []byte) error {
		end, err := protocol.DecodeGameEnd(data)
		if err != nil {
			return err
		}
		ends <- end
		return nil
	})
	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	send := func(message []byte, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		if err := controller.SendMessage(message); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
	}
	timeout := time.After(5 * time.Second)

	send(protocol.EncodeGameStart(protocol.GameStartRequest{
		Level:  mines.Custom,
		Params: mines.GameParams{Rows: 3, Cols: 3, Mines: 3},
	}))
	select {
	case view := <-states:
		if len(view.Cells) != 9 || view.Outcome != mines.InProgress {
			t.Fatalf("Unexpected game state %+v", view)
		}
	case <-timeout:
		t.Fatalf("No game state")
	}

	send(protocol.EncodeMove(mines.Move{Cell: 8, Type: mines.Reveal}))
	select {
	case cells := <-updates:
		if got := sortedCells(cells); !slices.Equal(got, []int{3, 4, 5, 6, 7, 8}) {
			t.Fatalf("Revealed %v", got)
		}
	case <-timeout:
		t.Fatalf("No cell updates")
	}
	select {
	case end := <-ends:
		if end != protocol.Win {
			t.Fatalf("Game ended with %d", end)
		}
	case <-timeout:
		t.Fatalf("No game end")
	}
}
