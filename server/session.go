package server

import (
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/mines"
	"github.com/tomasstrnad1997/minesweeper/players"
	"github.com/tomasstrnad1997/minesweeper/protocol"
)

// Session is one client connection. Everything but writes happens on the
// connection's own goroutine.
type Session struct {
	id         int
	conn       net.Conn
	writeMutex sync.Mutex
	log        *logrus.Entry

	player *players.Player
	game   *mines.Game
	// uuid.Nil until the game is saved for the first time.
	gameID  uuid.UUID
	gameEnd protocol.GameEndType
}

func newSession(id int, conn net.Conn, logger *logrus.Logger) *Session {
	return &Session{
		id:   id,
		conn: conn,
		log: logger.WithFields(logrus.Fields{
			"session": id,
			"remote":  conn.RemoteAddr().String(),
		}),
	}
}

func (session *Session) sendMessage(data []byte) {
	session.writeMutex.Lock()
	defer session.writeMutex.Unlock()
	if _, err := session.conn.Write(data); err != nil {
		session.log.WithError(err).Debug("Failed to write message")
	}
}

func (session *Session) sendTextMessage(msg string) {
	encoded, err := protocol.EncodeTextMessage(msg)
	if err != nil {
		session.log.WithError(err).Error("Failed to create a message")
		return
	}
	session.sendMessage(encoded)
}

func (session *Session) authenticate(player *players.Player) {
	session.player = player
	session.log = session.log.WithFields(logrus.Fields{"player": player.Name, "player_id": player.ID})
	session.log.Info("Player authenticated")
}

func (session *Session) rejectAuth(reason error) error {
	response, err := protocol.EncodeAuthResponse(protocol.AuthResponse{Success: false})
	if err != nil {
		return err
	}
	session.log.WithError(reason).Info("Authentication failed")
	session.sendMessage(response)
	return nil
}

// setGame replaces the current game, aborting it if it was still running,
// and sends the player the new board.
func (session *Session) setGame(game *mines.Game, id uuid.UUID) error {
	if session.game != nil && !session.game.Finished() {
		end, err := protocol.EncodeGameEnd(protocol.Aborted)
		if err != nil {
			return err
		}
		session.sendMessage(end)
	}
	game.SetHooks(mines.Hooks{
		OnWin: func() {
			session.gameEnd = protocol.Win
			session.log.Info("Game won")
		},
		OnLoss: func() {
			session.gameEnd = protocol.Loss
			session.log.Info("Game lost")
		},
	})
	session.game = game
	session.gameID = id
	session.gameEnd = 0
	state, err := protocol.EncodeGameState(protocol.NewGameView(game))
	if err != nil {
		return err
	}
	session.sendMessage(state)
	return nil
}

// flushGameEnd sends GameEnd if a hook fired during the last move.
func (session *Session) flushGameEnd() error {
	if session.gameEnd == 0 {
		return nil
	}
	end, err := protocol.EncodeGameEnd(session.gameEnd)
	if err != nil {
		return err
	}
	session.gameEnd = 0
	session.sendMessage(end)
	return nil
}
