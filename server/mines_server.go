package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/players"
	"github.com/tomasstrnad1997/minesweeper/protocol"
	"github.com/tomasstrnad1997/minesweeper/saves"
)

// Custom boards larger than this are refused.
const MaxCustomCells = 100 * 100

var ErrNotAuthenticated = errors.New("log in first")

type MessageHandler func(ctx context.Context, session *Session, data []byte) error

type Options struct {
	Addr         string
	Players      *players.Service
	Games        saves.Store
	DefaultLevel mines.Level
	Logger       *logrus.Logger
	// Rand builds the generator for each new game. Nil means mines.NewRand.
	Rand func() mines.Rand
}

type Server struct {
	listener     net.Listener
	players      *players.Service
	games        saves.Store
	defaultLevel mines.Level
	log          *logrus.Logger
	newRand      func() mines.Rand
	handlers     map[protocol.MessageType]MessageHandler

	sessionsMux sync.Mutex
	sessions    map[*Session]struct{}
	closed      bool
	wg          sync.WaitGroup
}

// CreateServer binds the listener. Nothing is accepted until Serve runs.
func CreateServer(opts Options) (*Server, error) {
	if opts.Players == nil || opts.Games == nil {
		return nil, fmt.Errorf("server needs a player service and a game store")
	}
	if opts.DefaultLevel == mines.Custom {
		return nil, fmt.Errorf("default level must be a preset")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	newRand := opts.Rand
	if newRand == nil {
		newRand = func() mines.Rand { return mines.NewRand() }
	}
	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to start server: %w", err)
	}
	server := &Server{
		listener:     listener,
		players:      opts.Players,
		games:        opts.Games,
		defaultLevel: opts.DefaultLevel,
		log:          logger,
		newRand:      newRand,
		handlers:     make(map[protocol.MessageType]MessageHandler),
		sessions:     make(map[*Session]struct{}),
	}
	server.RegisterHandlers()
	return server, nil
}

func (server *Server) Addr() net.Addr {
	return server.listener.Addr()
}

// Serve accepts connections until ctx is done, then closes every session
// and waits for their goroutines.
func (server *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, server.shutdown)
	defer stop()
	server.log.WithField("addr", server.Addr().String()).Info("Server started")
	id := 1
	for {
		conn, err := server.listener.Accept()
		if err != nil {
			server.shutdown()
			server.wg.Wait()
			if ctx.Err() != nil {
				server.log.Info("Server stopped")
				return nil
			}
			return err
		}
		session := newSession(id, conn, server.log)
		if !server.track(session) {
			conn.Close()
			continue
		}
		server.wg.Add(1)
		go func() {
			defer server.wg.Done()
			server.handleConnection(ctx, session)
		}()
		id++
	}
}

func (server *Server) track(session *Session) bool {
	server.sessionsMux.Lock()
	defer server.sessionsMux.Unlock()
	if server.closed {
		return false
	}
	server.sessions[session] = struct{}{}
	return true
}

func (server *Server) untrack(session *Session) {
	server.sessionsMux.Lock()
	delete(server.sessions, session)
	server.sessionsMux.Unlock()
}

func (server *Server) shutdown() {
	server.sessionsMux.Lock()
	defer server.sessionsMux.Unlock()
	if server.closed {
		return
	}
	server.closed = true
	server.listener.Close()
	for session := range server.sessions {
		session.conn.Close()
	}
}

func (server *Server) handleConnection(ctx context.Context, session *Session) {
	defer server.untrack(session)
	defer session.conn.Close()
	session.log.Info("Player connected")
	reader := bufio.NewReader(session.conn)
	for {
		message, err := protocol.ReadMessage(reader)
		if err != nil {
			session.log.WithError(err).Info("Player disconnected")
			return
		}
		if err := server.HandleMessage(ctx, session, message); err != nil {
			session.log.WithError(err).WithField("message", protocol.MessageType(message[0])).Warn("Failed to handle message")
			session.sendTextMessage("Error: " + err.Error())
		}
	}
}

func (server *Server) HandleMessage(ctx context.Context, session *Session, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("Cannot handle empty message")
	}
	msgType := protocol.MessageType(data[0])
	handler, exists := server.handlers[msgType]
	if !exists {
		return fmt.Errorf("No handler registered for message type: %s", msgType)
	}
	return handler(ctx, session, data)
}

func (server *Server) registerHandler(msgType protocol.MessageType, handler MessageHandler) {
	server.handlers[msgType] = handler
}

func (server *Server) RegisterHandlers() {
	server.registerHandler(protocol.StartGame, server.handleStartGame)
	server.registerHandler(protocol.MoveCommand, server.handleMove)
	server.registerHandler(protocol.RegisterPlayerRequest, server.handleRegister)
	server.registerHandler(protocol.AuthRequest, server.handleAuth)
	server.registerHandler(protocol.AuthWithToken, server.handleAuthWithToken)
	server.registerHandler(protocol.SaveGameRequest, server.handleSaveGame)
	server.registerHandler(protocol.LoadGameRequest, server.handleLoadGame)
}

func (server *Server) handleStartGame(ctx context.Context, session *Session, data []byte) error {
	request, err := protocol.DecodeGameStart(data)
	if err != nil {
		return err
	}
	var game *mines.Game
	switch {
	case request.Default:
		game, err = mines.NewGame(server.defaultLevel, server.newRand())
	case request.Level == mines.Custom:
		params := request.Params
		if params.Rows > 0 && params.Cols > 0 && params.Rows > MaxCustomCells/params.Cols {
			return fmt.Errorf("Custom board %dx%d is larger than %d cells", params.Rows, params.Cols, MaxCustomCells)
		}
		game, err = mines.CreateGame(params, server.newRand())
	default:
		game, err = mines.NewGame(request.Level, server.newRand())
	}
	if err != nil {
		return err
	}
	session.log.WithFields(logrus.Fields{
		"level": game.Level,
		"rows":  game.Params().Rows,
		"cols":  game.Params().Cols,
		"mines": game.Params().Mines,
	}).Info("Starting a new game")
	return session.setGame(game, uuid.Nil)
}

func (server *Server) handleMove(ctx context.Context, session *Session, data []byte) error {
	if session.game == nil {
		session.sendTextMessage("Game not running. Cant make moves.")
		return nil
	}
	move, err := protocol.DecodeMove(data)
	if err != nil {
		return err
	}
	updated, err := session.game.MakeMove(*move)
	if err != nil {
		return err
	}
	if len(updated) > 0 {
		encoded, err := protocol.EncodeCellUpdates(updated)
		if err != nil {
			return err
		}
		session.sendMessage(encoded)
	}
	return session.flushGameEnd()
}

func (server *Server) handleRegister(ctx context.Context, session *Session, data []byte) error {
	params, err := protocol.DecodeRegisterPlayerRequest(data)
	if err != nil {
		return err
	}
	err = server.players.Register(ctx, params.Name, params.Password)
	response, encErr := protocol.EncodeRegisterPlayerResponse(err == nil)
	if encErr != nil {
		return encErr
	}
	session.sendMessage(response)
	if err != nil {
		return fmt.Errorf("Failed to register %q: %w", params.Name, err)
	}
	session.log.WithField("name", params.Name).Info("Player registered")
	return nil
}

func (server *Server) handleAuth(ctx context.Context, session *Session, data []byte) error {
	params, err := protocol.DecodeAuthRequest(data)
	if err != nil {
		return err
	}
	player, err := server.players.Login(ctx, params.Name, params.Password)
	if err != nil {
		return session.rejectAuth(err)
	}
	return server.acceptAuth(session, player)
}

func (server *Server) handleAuthWithToken(ctx context.Context, session *Session, data []byte) error {
	token, err := protocol.DecodeAuthWithToken(data)
	if err != nil {
		return err
	}
	player, err := server.players.Authenticate(ctx, token)
	if err != nil {
		return session.rejectAuth(err)
	}
	return server.acceptAuth(session, player)
}

func (server *Server) acceptAuth(session *Session, player *players.Player) error {
	token, err := server.players.IssueToken(player)
	if err != nil {
		return err
	}
	info := player.Info()
	response, err := protocol.EncodeAuthResponse(protocol.AuthResponse{Success: true, Player: &info, Token: &token})
	if err != nil {
		return err
	}
	session.authenticate(player)
	session.sendMessage(response)
	return nil
}

func (server *Server) handleSaveGame(ctx context.Context, session *Session, data []byte) error {
	if err := protocol.DecodeSaveGameRequest(data); err != nil {
		return err
	}
	if session.player == nil {
		return ErrNotAuthenticated
	}
	if session.game == nil {
		return fmt.Errorf("No game to save")
	}
	state, err := protocol.MarshalSnapshot(session.game.Snapshot())
	if err != nil {
		return err
	}
	id := session.gameID
	if id == uuid.Nil {
		id = uuid.New()
	}
	err = server.games.SaveGame(ctx, saves.SavedGame{
		ID:       id,
		PlayerID: session.player.ID,
		Level:    session.game.Level,
		Outcome:  session.game.Outcome(),
		State:    state,
	})
	if err != nil {
		return fmt.Errorf("Failed to save game: %w", err)
	}
	session.gameID = id
	response, err := protocol.EncodeSaveGameResponse(id)
	if err != nil {
		return err
	}
	session.log.WithField("game", id).Info("Game saved")
	session.sendMessage(response)
	return nil
}

func (server *Server) handleLoadGame(ctx context.Context, session *Session, data []byte) error {
	id, err := protocol.DecodeLoadGameRequest(data)
	if err != nil {
		return err
	}
	if session.player == nil {
		return ErrNotAuthenticated
	}
	saved, err := server.games.LoadGame(ctx, session.player.ID, id)
	if err != nil {
		return fmt.Errorf("Failed to load game: %w", err)
	}
	snapshot, err := protocol.UnmarshalSnapshot(saved.State)
	if err != nil {
		return fmt.Errorf("Saved game %s is corrupted: %w", id, err)
	}
	game, err := mines.Restore(snapshot, server.newRand())
	if err != nil {
		return fmt.Errorf("Saved game %s is corrupted: %w", id, err)
	}
	session.log.WithField("game", id).Info("Game loaded")
	return session.setGame(game, id)
}
