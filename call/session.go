// Package call runs a push-to-talk session over one WebSocket connection.
// Every binary frame is a complete utterance; replies go out in order.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/ptt-voice/metrics"
	"github.com/mrsingh-rishi/ptt-voice/output"
	"github.com/mrsingh-rishi/ptt-voice/pipeline"
	"github.com/mrsingh-rishi/ptt-voice/types"
)

// ErrOutputClosed is returned by Serve when replies can no longer be
// written to the client.
var ErrOutputClosed = errors.New("session output closed")

// Conn is the subset of a WebSocket connection a session needs.
type Conn interface {
	output.Conn
	ReadMessage() (messageType int, p []byte, err error)
}

// Runner executes one turn.
type Runner interface {
	Run(ctx context.Context, raw []byte) (*pipeline.Turn, error)
}

type controlEvent struct {
	Event string `json:"event"` // "start", "stop"
}

type Session struct {
	ID      string
	conn    Conn
	runner  Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewSession(conn Conn, runner Runner, logger *slog.Logger, m *metrics.Metrics) *Session {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:      id,
		conn:    conn,
		runner:  runner,
		logger:  logger.With("session_id", id),
		metrics: m,
	}
}

// Serve reads utterances until the client closes the socket or sends a stop
// event. A failed turn is reported to the client and the session continues.
func (s *Session) Serve(ctx context.Context) error {
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	events := make(chan output.Event)
	out, err := output.NewWSOutput(s.ID, s.conn, events, s.logger)
	if err != nil {
		return err
	}
	out.Start()
	defer func() {
		close(events)
		<-out.Done()
	}()

	s.logger.Info("session started")
	for {
		kind, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("session closed by client")
				return nil
			}
			s.logger.Warn("session read error", "error", err)
			return err
		}

		switch kind {
		case websocket.BinaryMessage:
			ev := s.turn(ctx, msg)
			select {
			case events <- ev:
			case <-out.Done():
				return ErrOutputClosed
			case <-ctx.Done():
				return ctx.Err()
			}

		case websocket.TextMessage:
			var ctl controlEvent
			if err := json.Unmarshal(msg, &ctl); err != nil {
				s.logger.Debug("ignoring text frame", "error", err)
				continue
			}
			switch ctl.Event {
			case "start":
				s.logger.Debug("client ready")
			case "stop":
				s.logger.Info("session stopped by client")
				return nil
			default:
				s.logger.Debug("unknown event", "event", ctl.Event)
			}
		}
	}
}

func (s *Session) turn(ctx context.Context, utterance []byte) output.Event {
	turn, err := s.runner.Run(ctx, utterance)
	ev := output.Event{}
	if turn != nil {
		ev.TurnID = turn.ID
		ev.Transcript = string(turn.Transcript)
		ev.Reply = string(turn.Reply)
	}
	if err != nil {
		var se *types.StageError
		if !errors.As(err, &se) {
			se = types.NewStageError(types.Stage("internal"), err)
		}
		ev.Err = se
		return ev
	}
	ev.WAV = turn.WAV
	return ev
}
