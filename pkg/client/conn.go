package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"rhealth-backend/domain/patient"
	"rhealth-backend/pkg/protocol"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures a connection to the roster server
type Options struct {
	// URL of the /ws endpoint, e.g. ws://localhost:5000/ws
	URL string
	// Token is sent as a Bearer header when set
	Token            string
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
}

// Conn is one WebSocket session feeding a Roster
type Conn struct {
	ws        *websocket.Conn
	roster    *Roster
	writeWait time.Duration
	logger    *zap.Logger

	writeMu sync.Mutex
}

// Dial opens a session. The server pushes the roster straight away; Run
// must be called to receive it.
func Dial(ctx context.Context, opts Options, roster *Roster, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	ws, resp, err := dialer.DialContext(ctx, opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", opts.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	writeWait := opts.WriteWait
	if writeWait == 0 {
		writeWait = 10 * time.Second
	}
	return &Conn{ws: ws, roster: roster, writeWait: writeWait, logger: logger}, nil
}

// Run reads server messages into the roster until the connection drops or
// ctx is cancelled. handle, if set, is called after each message is applied.
func (c *Conn) Run(ctx context.Context, handle func(Update)) error {
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		u, err := c.roster.Handle(raw)
		if err != nil {
			c.logger.Warn("Ignoring server message", zap.Error(err))
			continue
		}
		if handle != nil {
			handle(u)
		}
	}
}

// Close sends a close frame and closes the socket
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// AddPatient shows the patient optimistically and sends the add
func (c *Conn) AddPatient(fields patient.Fields) (string, error) {
	requestID := uuid.NewString()
	c.roster.Add(requestID, fields)
	return requestID, c.send(protocol.TypeAddPatient, requestID, protocol.AddPayload(fields))
}

// UpdatePatient applies the patch optimistically and sends it
func (c *Conn) UpdatePatient(id int64, patch patient.Patch) (string, error) {
	requestID := uuid.NewString()
	c.roster.Update(requestID, id, patch)
	return requestID, c.send(protocol.TypeUpdatePatient, requestID, protocol.UpdatePayload(id, patch))
}

// DeletePatient hides the patient optimistically and sends the delete
func (c *Conn) DeletePatient(id int64) (string, error) {
	requestID := uuid.NewString()
	c.roster.Delete(requestID, id)
	return requestID, c.send(protocol.TypeDeletePatient, requestID, protocol.IDPayload(id))
}

// SelectPatient asks the server to move the shared selection. The local
// selection changes when the server relays it back.
func (c *Conn) SelectPatient(id int64) (string, error) {
	requestID := uuid.NewString()
	return requestID, c.send(protocol.TypeSelectPatient, requestID, protocol.IDPayload(id))
}

func (c *Conn) send(msgType, requestID string, data interface{}) error {
	frame, err := protocol.Encode(msgType, requestID, data)
	if err != nil {
		c.roster.Reject(requestID)
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.roster.Reject(requestID)
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}

// Watch keeps a session open, redialing with exponential backoff whenever it
// drops, until ctx is cancelled.
func Watch(ctx context.Context, opts Options, roster *Roster, logger *zap.Logger, handle func(Update)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second

	for {
		conn, err := Dial(ctx, opts, roster, logger)
		if err == nil {
			b.Reset()
			logger.Info("Connected", zap.String("url", opts.URL))
			err = conn.Run(ctx, handle)
			conn.ws.Close()
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		logger.Warn("Connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// ServerError is an error message the server sent in reply to a request
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Session is a short-lived connection for one-shot commands
type Session struct {
	*Conn
	Roster  *Roster
	updates chan Update
	runErr  chan error
}

// Once dials, waits for the initial snapshot, runs fn and closes
func Once(ctx context.Context, opts Options, logger *zap.Logger, fn func(*Session) error) error {
	roster := NewRoster()
	conn, err := Dial(ctx, opts, roster, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &Session{
		Conn:    conn,
		Roster:  roster,
		updates: make(chan Update, 16),
		runErr:  make(chan error, 1),
	}
	go func() {
		s.runErr <- conn.Run(runCtx, func(u Update) {
			select {
			case s.updates <- u:
			case <-runCtx.Done():
			}
		})
	}()

	if err := s.waitFor(ctx, func(u Update) (bool, error) {
		return u.Type == protocol.TypePatients, nil
	}); err != nil {
		return err
	}
	return fn(s)
}

// Await blocks until the server answers requestID. The answer is either the
// push of type confirmType carrying the same request id, which the server
// sends once the request is committed, or an error with that request id.
// Pushes caused by other sessions are applied to the roster but answer
// nothing.
func (s *Session) Await(ctx context.Context, requestID, confirmType string) (Update, error) {
	var answer Update
	err := s.waitFor(ctx, func(u Update) (bool, error) {
		if u.RequestID != requestID {
			return false, nil
		}
		if u.Type == protocol.TypeError && u.Err != nil {
			return true, &ServerError{Code: u.Err.Code, Message: u.Err.Message}
		}
		if u.Type == confirmType {
			answer = u
			return true, nil
		}
		return false, nil
	})
	return answer, err
}

func (s *Session) waitFor(ctx context.Context, done func(Update) (bool, error)) error {
	for {
		select {
		case u := <-s.updates:
			if ok, err := done(u); ok || err != nil {
				return err
			}
		case err := <-s.runErr:
			if err == nil {
				err = errors.New("connection closed")
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// MarshalIndent renders a roster view for terminal output
func MarshalIndent(list []patient.Patient) string {
	out, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(out)
}
