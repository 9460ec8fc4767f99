package call

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/ptt-voice/metrics"
	"github.com/mrsingh-rishi/ptt-voice/pipeline"
	"github.com/mrsingh-rishi/ptt-voice/types"
)

type inbound struct {
	kind int
	data []byte
	err  error
}

// scriptedConn replays inbound frames and records everything written.
type scriptedConn struct {
	mu      sync.Mutex
	inbound  []inbound
	written  []inbound
	writeErr error
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return 0, nil, &fws.CloseError{Code: fws.CloseNormalClosure}
	}
	next := c.inbound[0]
	c.inbound = c.inbound[1:]
	return next.kind, next.data, next.err
}

func (c *scriptedConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, inbound{kind: kind, data: data})
	return nil
}

func (c *scriptedConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

type fakeRunner struct {
	calls [][]byte
}

func (r *fakeRunner) Run(_ context.Context, raw []byte) (*pipeline.Turn, error) {
	r.calls = append(r.calls, raw)
	turn := &pipeline.Turn{ID: "turn-" + string(raw)}
	if string(raw) == "bad" {
		turn.State = types.StateFailed
		return turn, types.NewStageError(types.StageSTT, errors.New("upstream down"))
	}
	turn.State = types.StateDone
	turn.WAV = []byte("wav:" + string(raw))
	return turn, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServeRepliesInOrderAndSurvivesFailures(t *testing.T) {
	conn := &scriptedConn{inbound: []inbound{
		{kind: websocket.TextMessage, data: []byte(`{"event":"start"}`)},
		{kind: websocket.BinaryMessage, data: []byte("one")},
		{kind: websocket.BinaryMessage, data: []byte("bad")},
		{kind: websocket.BinaryMessage, data: []byte("two")},
	}}
	runner := &fakeRunner{}
	m := metrics.NewMetrics()

	if err := NewSession(conn, runner, quietLogger(), m).Serve(context.Background()); err != nil {
		t.Fatalf("Serve returned %v, want nil on normal close", err)
	}

	if len(runner.calls) != 3 {
		t.Fatalf("runner called %d times, want 3", len(runner.calls))
	}

	// one: wav + mark, bad: error, two: wav + mark
	if len(conn.written) != 5 {
		t.Fatalf("wrote %d frames, want 5", len(conn.written))
	}
	if conn.written[0].kind != websocket.BinaryMessage || string(conn.written[0].data) != "wav:one" {
		t.Errorf("frame 0 = %q", conn.written[0].data)
	}

	var errEvent map[string]interface{}
	if err := json.Unmarshal(conn.written[2].data, &errEvent); err != nil {
		t.Fatalf("frame 2 is not JSON: %v", err)
	}
	if errEvent["event"] != "error" || errEvent["stage"] != "stt" || errEvent["message"] != "Error STT: upstream down" {
		t.Errorf("error event = %v", errEvent)
	}
	if string(conn.written[3].data) != "wav:two" {
		t.Errorf("frame 3 = %q", conn.written[3].data)
	}
}

func TestServeStopEvent(t *testing.T) {
	conn := &scriptedConn{inbound: []inbound{
		{kind: websocket.TextMessage, data: []byte(`{"event":"stop"}`)},
		{kind: websocket.BinaryMessage, data: []byte("never")},
	}}
	runner := &fakeRunner{}

	if err := NewSession(conn, runner, quietLogger(), nil).Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner called after stop: %d", len(runner.calls))
	}
}

func TestServeReadError(t *testing.T) {
	boom := errors.New("connection reset")
	conn := &scriptedConn{inbound: []inbound{{err: boom}}}

	err := NewSession(conn, &fakeRunner{}, quietLogger(), nil).Serve(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Serve returned %v, want %v", err, boom)
	}
}

func TestServeReturnsWhenOutputStops(t *testing.T) {
	conn := &scriptedConn{
		inbound: []inbound{
			{kind: websocket.BinaryMessage, data: []byte("one")},
			{kind: websocket.BinaryMessage, data: []byte("two")},
			{kind: websocket.BinaryMessage, data: []byte("three")},
		},
		writeErr: errors.New("broken pipe"),
	}

	done := make(chan error, 1)
	go func() {
		done <- NewSession(conn, &fakeRunner{}, quietLogger(), nil).Serve(context.Background())
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrOutputClosed) {
			t.Errorf("Serve returned %v, want ErrOutputClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve blocked after the writer stopped")
	}
}

func TestServeIgnoresJunkText(t *testing.T) {
	conn := &scriptedConn{inbound: []inbound{
		{kind: websocket.TextMessage, data: []byte("not json")},
		{kind: websocket.TextMessage, data: []byte(`{"event":"dance"}`)},
		{kind: websocket.BinaryMessage, data: []byte("ok")},
	}}
	runner := &fakeRunner{}

	if err := NewSession(conn, runner, quietLogger(), nil).Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("runner called %d times, want 1", len(runner.calls))
	}
}
