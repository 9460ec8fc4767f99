package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/ptt-voice/audio"
	"github.com/mrsingh-rishi/ptt-voice/call"
	"github.com/mrsingh-rishi/ptt-voice/metrics"
	"github.com/mrsingh-rishi/ptt-voice/pipeline"
	"github.com/mrsingh-rishi/ptt-voice/types"
)

const contentTypeWAV = "audio/wav"

// Runner executes one push-to-talk turn.
type Runner interface {
	Run(ctx context.Context, raw []byte) (*pipeline.Turn, error)
}

type Options struct {
	BodyLimit int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	AccessLog io.Writer // nil disables the access log
}

type Server struct {
	app     *fiber.App
	runner  Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(runner Runner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "ptt-voice",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:     app,
		runner:  runner,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Output: opts.AccessLog,
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(s.withMetrics)

	app.Get("/ping", s.handlePing)
	app.Get("/tone", s.handleTone)
	app.Post("/api/ptt-echo", s.handleEcho)
	app.Post("/api/ptt", s.handlePTT)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/ptt", websocket.New(s.handleSession))

	return s
}

// App returns the underlying Fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) withMetrics(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	s.metrics.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start).Seconds())
	return err
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true, "msg": "pong"})
}

func (s *Server) handleTone(c *fiber.Ctx) error {
	wav, err := audio.DiagnosticTone()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentTypeWAV)
	return c.Send(wav)
}

func (s *Server) handleEcho(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	s.logger.Debug("echo", "request_id", c.Locals("requestid"), "bytes", len(body))
	c.Set(fiber.HeaderContentType, contentTypeWAV)
	return c.Send(body)
}

func (s *Server) handlePTT(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer once the handler returns
	body := append([]byte(nil), c.Body()...)

	turn, err := s.runner.Run(c.UserContext(), body)
	if turn != nil {
		s.logger.Info("ptt request",
			"request_id", c.Locals("requestid"),
			"turn_id", turn.ID,
			"rx_bytes", len(body),
			"state", turn.State,
		)
	}
	if err != nil {
		var se *types.StageError
		if !errors.As(err, &se) {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(se.StatusCode()).SendString(se.Message())
	}

	c.Set(fiber.HeaderContentType, contentTypeWAV)
	return c.Send(turn.WAV)
}

func (s *Server) handleSession(conn *websocket.Conn) {
	defer conn.Close()

	session := call.NewSession(conn, s.runner, s.logger, s.metrics)
	if err := session.Serve(context.Background()); err != nil {
		s.logger.Debug("session ended with error", "session_id", session.ID, "error", err)
	}
}
