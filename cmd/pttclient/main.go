// Command pttclient sends one recorded utterance to a ptt-voice server and
// saves the spoken reply, the way the embedded push-to-talk device does.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type wsEvent struct {
	Event   string `json:"event"`
	Name    string `json:"name"`
	Stage   string `json:"stage"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Reply   string `json:"reply"`
}

func main() {
	server := flag.String("server", "http://localhost:8000", "Base URL of the ptt-voice server")
	mode := flag.String("mode", "ptt", "One of ptt, echo, tone, ws")
	in := flag.String("in", "", "WAV file to send (not needed for tone)")
	out := flag.String("out", "reply.wav", "Where to write the reply audio")
	timeout := flag.Duration("timeout", 60*time.Second, "Request timeout")
	flag.Parse()

	if err := run(*server, *mode, *in, *out, *timeout, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pttclient: %v\n", err)
		os.Exit(1)
	}
}

func run(server, mode, in, out string, timeout time.Duration, stdout io.Writer) error {
	var body []byte
	if mode != "tone" {
		if in == "" {
			return errors.New("-in is required")
		}
		data, err := os.ReadFile(in)
		if err != nil {
			return errors.Wrap(err, "read input")
		}
		body = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	var (
		reply []byte
		err   error
	)
	switch mode {
	case "ptt":
		reply, err = post(ctx, server+"/api/ptt", body)
	case "echo":
		reply, err = post(ctx, server+"/api/ptt-echo", body)
	case "tone":
		reply, err = get(ctx, server+"/tone")
	case "ws":
		reply, err = roundTripWS(ctx, server, body)
	default:
		return errors.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, reply, 0o644); err != nil {
		return errors.Wrap(err, "write reply")
	}
	fmt.Fprintf(stdout, "sent %d bytes, got %d bytes in %s -> %s\n", len(body), len(reply), time.Since(start).Round(time.Millisecond), out)
	return nil
}

func post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "audio/wav")
	return do(req)
}

func get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	return do(req)
}

func do(req *http.Request) ([]byte, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// wsURL maps http(s)://host to ws(s)://host/ws/ptt.
func wsURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/ptt"
	return u.String(), nil
}

func roundTripWS(ctx context.Context, server string, body []byte) ([]byte, error) {
	endpoint, err := wsURL(server)
	if err != nil {
		return nil, err
	}
	conn, _, err := gws.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteMessage(gws.BinaryMessage, body); err != nil {
		return nil, errors.Wrap(err, "send utterance")
	}

	var reply []byte
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, errors.Wrap(err, "read")
		}
		if kind == gws.BinaryMessage {
			reply = msg
			continue
		}

		var ev wsEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		switch ev.Event {
		case "mark":
			_ = conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
			return reply, nil
		case "error":
			return nil, errors.Errorf("server returned %d: %s", ev.Status, ev.Message)
		}
	}
}
