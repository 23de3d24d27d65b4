package websocket

import (
	"bytes"
	"context"
	"sync"
	"time"

	"rhealth-backend/application/commands"
	"rhealth-backend/application/ports"
	apperrors "rhealth-backend/pkg/errors"
	"rhealth-backend/pkg/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dispatcher is where a client hands its events
type Dispatcher interface {
	Connect(ctx context.Context, s ports.Session) error
	Disconnect(s ports.Session)
	Submit(ctx context.Context, s ports.Session, m commands.Mutation) error
	Select(ctx context.Context, cmd commands.SelectPatientCommand) error
}

// ClientConfig tunes a connection's pumps
type ClientConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer
	PongWait time.Duration
	// Maximum message size allowed from peer
	MaxMessageSize int64
	// Outbound queue length
	SendBufferSize int
}

// DefaultClientConfig returns the default pump settings
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 512 * 1024,
		SendBufferSize: 256,
	}
}

// pingPeriod must be less than pongWait
func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Client represents a WebSocket client connection. It implements ports.Session.
type Client struct {
	id         string
	conn       *websocket.Conn
	dispatcher Dispatcher
	config     ClientConfig
	logger     *zap.Logger

	mu     sync.Mutex
	send   chan []byte // Buffered channel of outbound messages
	closed bool
}

// NewClient creates a new WebSocket client
func NewClient(userID string, conn *websocket.Conn, dispatcher Dispatcher, config ClientConfig, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:         id,
		conn:       conn,
		dispatcher: dispatcher,
		config:     config,
		send:       make(chan []byte, config.SendBufferSize),
		logger: logger.With(
			zap.String("connectionID", id),
			zap.String("userID", userID),
		),
	}
}

// ID implements ports.Session
func (c *Client) ID() string {
	return c.id
}

// Send implements ports.Session. It never blocks: a full queue drops the
// message for this client only.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.NewTransport("session closed", nil)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return apperrors.NewTransport("send queue full", nil)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Start registers the client and begins its read and write pumps
func (c *Client) Start(ctx context.Context) error {
	if err := c.dispatcher.Connect(ctx, c); err != nil {
		c.conn.Close()
		return err
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump pumps messages from the WebSocket connection to the dispatcher
func (c *Client) readPump() {
	defer func() {
		c.dispatcher.Disconnect(c)
		c.conn.Close()
		c.logger.Info("Read pump stopped")
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleTextMessage(message)
		case websocket.BinaryMessage:
			c.logger.Warn("Binary messages not supported")
		}
	}
}

// writePump pumps messages from the send queue to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// handleTextMessage turns an inbound frame into a dispatcher event
func (c *Client) handleTextMessage(message []byte) {
	env, err := protocol.Decode(bytes.TrimSpace(message))
	if err != nil {
		c.reject("", err)
		return
	}

	ctx := context.Background()
	logger := c.logger.With(zap.String("messageType", env.Type), zap.String("requestID", env.RequestID))

	switch env.Type {
	case protocol.TypeAddPatient:
		fields, err := protocol.DecodeAdd(env.Data)
		if err != nil {
			c.reject(env.RequestID, err)
			return
		}
		err = c.dispatcher.Submit(ctx, c, commands.AddPatientCommand{
			Fields: fields, SessionID: c.id, RequestID: env.RequestID,
		})
		c.submitted(logger, env.RequestID, err)

	case protocol.TypeUpdatePatient:
		id, patch, err := protocol.DecodeUpdate(env.Data)
		if err != nil {
			c.reject(env.RequestID, err)
			return
		}
		err = c.dispatcher.Submit(ctx, c, commands.UpdatePatientCommand{
			PatientID: id, Patch: patch, SessionID: c.id, RequestID: env.RequestID,
		})
		c.submitted(logger, env.RequestID, err)

	case protocol.TypeDeletePatient:
		id, err := protocol.DecodeID(env.Data)
		if err != nil {
			c.reject(env.RequestID, err)
			return
		}
		err = c.dispatcher.Submit(ctx, c, commands.DeletePatientCommand{
			PatientID: id, SessionID: c.id, RequestID: env.RequestID,
		})
		c.submitted(logger, env.RequestID, err)

	case protocol.TypeSelectPatient:
		id, err := protocol.DecodeID(env.Data)
		if err != nil {
			c.reject(env.RequestID, err)
			return
		}
		err = c.dispatcher.Select(ctx, commands.SelectPatientCommand{
			PatientID: id, SessionID: c.id, RequestID: env.RequestID,
		})
		c.submitted(logger, env.RequestID, err)

	default:
		c.reject(env.RequestID, apperrors.NewValidation("unknown message type "+env.Type))
	}
}

func (c *Client) submitted(logger *zap.Logger, requestID string, err error) {
	if err != nil {
		logger.Error("Failed to queue message", zap.Error(err))
		c.reject(requestID, err)
		return
	}
	logger.Debug("Message queued")
}

// reject reports a message that never reached the dispatcher
func (c *Client) reject(requestID string, cause error) {
	data, err := protocol.EncodeError(requestID, cause)
	if err != nil {
		return
	}
	if err := c.Send(data); err != nil {
		c.logger.Debug("Could not report rejected message", zap.Error(err))
	}
}
