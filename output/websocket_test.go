package output

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/ptt-voice/types"
)

type frame struct {
	kind int
	data []byte
}

type recordingConn struct {
	mu     sync.Mutex
	frames []frame
	fail   error
}

func (c *recordingConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.frames = append(c.frames, frame{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, b)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func run(t *testing.T, conn Conn, events ...Event) {
	t.Helper()
	ch := make(chan Event, len(events))
	out, err := NewWSOutput("sess-1", conn, ch, quietLogger())
	if err != nil {
		t.Fatalf("NewWSOutput: %v", err)
	}
	out.Start()
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	<-out.Done()
}

func TestReplyThenMark(t *testing.T) {
	conn := &recordingConn{}
	run(t, conn, Event{TurnID: "t1", WAV: []byte("RIFFdata"), Transcript: "hola", Reply: "hola PAPU"})

	if len(conn.frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(conn.frames))
	}
	if conn.frames[0].kind != websocket.BinaryMessage || string(conn.frames[0].data) != "RIFFdata" {
		t.Errorf("first frame = %d %q", conn.frames[0].kind, conn.frames[0].data)
	}

	var mark markMessage
	if err := json.Unmarshal(conn.frames[1].data, &mark); err != nil {
		t.Fatalf("mark is not JSON: %v", err)
	}
	if mark.Event != "mark" || mark.Name != MarkReplyComplete || mark.TurnID != "t1" || mark.Bytes != 8 {
		t.Errorf("mark = %+v", mark)
	}
	if mark.SessionID != "sess-1" || mark.Reply != "hola PAPU" {
		t.Errorf("mark = %+v", mark)
	}
}

func TestErrorEvent(t *testing.T) {
	conn := &recordingConn{}
	run(t, conn, Event{TurnID: "t2", Err: types.NewStageError(types.StageSTT, errors.New("timeout"))})

	if len(conn.frames) != 1 || conn.frames[0].kind != websocket.TextMessage {
		t.Fatalf("frames = %+v", conn.frames)
	}
	var msg errorMessage
	if err := json.Unmarshal(conn.frames[0].data, &msg); err != nil {
		t.Fatalf("error event is not JSON: %v", err)
	}
	if msg.Event != "error" || msg.Stage != "stt" || msg.Status != 500 || msg.Message != "Error STT: timeout" {
		t.Errorf("error event = %+v", msg)
	}
}

func TestWriteFailureStopsWriter(t *testing.T) {
	conn := &recordingConn{fail: errors.New("broken pipe")}
	events := make(chan Event)
	out, err := NewWSOutput("s", conn, events, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	out.Start()

	events <- Event{WAV: []byte("a")}
	select {
	case <-out.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("writer still running after a failed write")
	}

	select {
	case events <- Event{WAV: []byte("b")}:
		t.Error("stopped writer accepted another event")
	default:
	}
}

func TestNewWSOutputValidation(t *testing.T) {
	if _, err := NewWSOutput("s", &recordingConn{}, nil, nil); err == nil {
		t.Error("expected error for nil channel")
	}
	if _, err := NewWSOutput("s", nil, make(chan Event), nil); err == nil {
		t.Error("expected error for nil connection")
	}
}

func TestStop(t *testing.T) {
	out, err := NewWSOutput("s", &recordingConn{}, make(chan Event), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	out.Start()
	out.Stop()
	<-out.Done()
}
