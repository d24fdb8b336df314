// Package web serves a control and status API for a running model, plus a
// websocket feed of motion and hit events.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/expression"
	"github.com/teslashibe/go-cubism/pkg/hub"
	"github.com/teslashibe/go-cubism/pkg/live2d"
	"github.com/teslashibe/go-cubism/pkg/motion"
	"github.com/teslashibe/go-cubism/pkg/settings"
)

// Controller is the model surface the server drives. *live2d.Model
// implements it.
type Controller interface {
	Settings() *settings.Settings
	Status() (live2d.Status, error)
	Motion(ctx context.Context, group string, index int, priority motion.Priority, opts ...motion.StartOption) bool
	Expression(ctx context.Context, ref expression.Ref) bool
	ResetExpression()
	SpeakAsset(ctx context.Context, asset string, opts motion.SpeakOptions) (bool, error)
	StopMotions()
	Focus(x, y float64, instant bool)
	Tap(x, y float64) []string
}

// maxEvents bounds the recent event buffer.
const maxEvents = 200

// Config configures a Server.
type Config struct {
	Port   string
	Static string // served at / when set
	Logger *slog.Logger
}

// Server is the control server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger
	ctl    Controller
	events *hub.Hub

	ctx    context.Context
	cancel context.CancelFunc

	recent   []hub.Event
	recentMu sync.RWMutex
}

// NewServer creates a server for ctl. events may be shared with an
// Observer so motion events reach websocket clients.
func NewServer(cfg Config, ctl Controller, events *hub.Hub) *Server {
	logger := log.Or(cfg.Logger).With("component", "web")
	if events == nil {
		events = hub.New("events", cfg.Logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		port:   cfg.Port,
		logger: logger,
		ctl:    ctl,
		events: events,
		ctx:    ctx,
		cancel: cancel,
		recent: make([]hub.Event, 0, maxEvents),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-cubism",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())
	if cfg.Static != "" {
		app.Static("/", cfg.Static)
	}

	api := app.Group("/api")
	api.Get("/model", s.handleModel)
	api.Get("/state", s.handleState)
	api.Get("/events", s.handleEvents)
	api.Post("/motions/:group", s.handleMotion)
	api.Post("/motions/:group/:index", s.handleMotion)
	api.Post("/expressions", s.handleExpression)
	api.Post("/expressions/:ref", s.handleExpression)
	api.Delete("/expressions", s.handleResetExpression)
	api.Post("/speak", s.handleSpeak)
	api.Post("/focus", s.handleFocus)
	api.Post("/tap", s.handleTap)
	api.Post("/stop", s.handleStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Hub returns the event hub.
func (s *Server) Hub() *hub.Hub { return s.events }

// Start runs the event hub and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("control server listening", "addr", "http://localhost:"+s.port)
	go s.events.Run(s.ctx)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// Publish records an event and broadcasts it to websocket clients.
func (s *Server) Publish(typ string, data any) {
	ev := hub.NewEvent(typ, data)

	s.recentMu.Lock()
	s.recent = append(s.recent, ev)
	if len(s.recent) > maxEvents {
		s.recent = s.recent[1:]
	}
	s.recentMu.Unlock()

	if err := s.events.BroadcastJSON(ev); err != nil {
		s.logger.Warn("failed to broadcast event", "type", typ, "error", err)
	}
}

// PublishHit forwards a hit event. Register it with live2d.Model.OnHit.
func (s *Server) PublishHit(e live2d.HitEvent) {
	s.Publish("hit", e)
}

// Observer returns a motion observer that publishes through s.
func (s *Server) Observer() motion.Observer {
	return motion.ObserverFuncs{
		Start:   func(e motion.MotionStartEvent) { s.Publish("motion_start", e) },
		Finish:  func(e motion.MotionFinishEvent) { s.Publish("motion_finish", e) },
		Destroy: func() { s.Publish("destroy", nil) },
	}
}

// Attach sets the controller once the model exists, so a server created
// first can hand its Observer to the model. Call it before Start.
func (s *Server) Attach(ctl Controller) {
	s.ctl = ctl
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.app.ShutdownWithTimeout(timeout)
}
