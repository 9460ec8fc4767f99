// Package output writes push-to-talk results back over a WebSocket session.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/ptt-voice/types"
)

// MarkReplyComplete names the mark sent after every reply frame.
const MarkReplyComplete = "reply complete"

// Conn is the write half of a WebSocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
}

// Event is one finished turn: either a reply WAV or the failure that ended it.
type Event struct {
	TurnID     string
	WAV        []byte
	Transcript string
	Reply      string
	Err        *types.StageError
}

type markMessage struct {
	Event      string `json:"event"`
	SessionID  string `json:"sessionId"`
	TurnID     string `json:"turnId"`
	Name       string `json:"name"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
	Bytes      int    `json:"bytes"`
}

type errorMessage struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId"`
	TurnID    string `json:"turnId"`
	Stage     string `json:"stage"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
}

// WSOutput drains an event channel onto the socket from a single goroutine,
// so writes never interleave.
type WSOutput struct {
	ctx       context.Context
	cancel    context.CancelFunc
	events    <-chan Event
	sessionID string
	conn      Conn
	logger    *slog.Logger
	done      chan struct{}
	startOnce sync.Once
}

func NewWSOutput(sessionID string, conn Conn, events <-chan Event, logger *slog.Logger) (*WSOutput, error) {
	if events == nil {
		return nil, fmt.Errorf("event channel is required")
	}
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WSOutput{
		ctx:       ctx,
		cancel:    cancel,
		events:    events,
		sessionID: sessionID,
		conn:      conn,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start launches the writer. It exits when the channel closes, Stop is
// called, or a write to the socket fails.
func (o *WSOutput) Start() {
	o.startOnce.Do(func() {
		go func() {
			defer close(o.done)
			for {
				select {
				case <-o.ctx.Done():
					return
				case ev, ok := <-o.events:
					if !ok {
						return
					}
					if err := o.write(ev); err != nil {
						o.logger.Warn("session output stopped", "session_id", o.sessionID, "turn_id", ev.TurnID, "error", err)
						return
					}
				}
			}
		}()
	})
}

// Done is closed once the writer goroutine has returned.
func (o *WSOutput) Done() <-chan struct{} {
	return o.done
}

func (o *WSOutput) Stop() {
	o.cancel()
}

func (o *WSOutput) write(ev Event) error {
	if ev.Err != nil {
		return o.sendError(ev)
	}
	if err := o.conn.WriteMessage(websocket.BinaryMessage, ev.WAV); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return o.sendMark(ev)
}

func (o *WSOutput) sendMark(ev Event) error {
	msg := markMessage{
		Event:      "mark",
		SessionID:  o.sessionID,
		TurnID:     ev.TurnID,
		Name:       MarkReplyComplete,
		Transcript: ev.Transcript,
		Reply:      ev.Reply,
		Bytes:      len(ev.WAV),
	}
	if err := o.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write mark: %w", err)
	}
	return nil
}

func (o *WSOutput) sendError(ev Event) error {
	msg := errorMessage{
		Event:     "error",
		SessionID: o.sessionID,
		TurnID:    ev.TurnID,
		Stage:     string(ev.Err.Stage),
		Status:    ev.Err.StatusCode(),
		Message:   ev.Err.Message(),
	}
	if err := o.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write error event: %w", err)
	}
	return nil
}
