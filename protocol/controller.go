package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

const outgoingQueueLength = 64

var ErrControllerClosed = errors.New("controller closed")

type MessageHandler func([]byte) error

// Controller is the client end of a game server connection. Handlers must
// be registered before Run is called.
type Controller struct {
	conn            net.Conn
	messageHandlers map[MessageType]MessageHandler
	messageChannel  chan []byte
	done            chan struct{}
	closeOnce       sync.Once
	log             *logrus.Entry
}

func NewController(conn net.Conn, logger logrus.FieldLogger) *Controller {
	controller := &Controller{
		conn:            conn,
		messageHandlers: make(map[MessageType]MessageHandler),
		messageChannel:  make(chan []byte, outgoingQueueLength),
		done:            make(chan struct{}),
		log:             logger.WithField("server", conn.RemoteAddr().String()),
	}
	go controller.writer()
	return controller
}

// Dial connects to a game server over TCP.
func Dial(ctx context.Context, addr string, logger logrus.FieldLogger) (*Controller, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to %s: %w", addr, err)
	}
	return NewController(conn, logger), nil
}

func (controller *Controller) ServerAddress() string {
	return controller.conn.RemoteAddr().String()
}

func (controller *Controller) writer() {
	for {
		select {
		case <-controller.done:
			return
		case message := <-controller.messageChannel:
			if _, err := controller.conn.Write(message); err != nil {
				controller.log.WithError(err).Warn("Error writing to server")
				controller.Close()
				return
			}
		}
	}
}

// SendMessage queues an encoded message. It fails instead of blocking when
// the queue is full.
func (controller *Controller) SendMessage(message []byte) error {
	select {
	case <-controller.done:
		return ErrControllerClosed
	default:
	}
	select {
	case controller.messageChannel <- message:
		return nil
	default:
		return fmt.Errorf("Failed to write to message channel")
	}
}

func (controller *Controller) RegisterHandler(msgType MessageType, handlerFunc MessageHandler) {
	controller.messageHandlers[msgType] = handlerFunc
}

func (controller *Controller) HandleMessage(bytes []byte) error {
	msgType := MessageType(bytes[0])
	handlerFunc, exists := controller.messageHandlers[msgType]
	if !exists {
		return fmt.Errorf("No handler registered for message type: %s", msgType)
	}
	return handlerFunc(bytes)
}

// Run reads server messages until the connection drops or ctx is done.
// Handler errors are logged and do not stop the loop.
func (controller *Controller) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { controller.Close() })
	defer stop()
	for {
		message, err := ReadMessage(controller.conn)
		if err != nil {
			controller.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return ErrControllerClosed
			}
			return fmt.Errorf("Lost connection to server: %w", err)
		}
		if err := controller.HandleMessage(message); err != nil {
			controller.log.WithError(err).Warn("Failed to handle message")
		}
	}
}

func (controller *Controller) Close() error {
	var err error
	controller.closeOnce.Do(func() {
		close(controller.done)
		err = controller.conn.Close()
	})
	return err
}
