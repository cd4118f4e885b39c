// Package web serves the assistant dashboard: JSON endpoints for status,
// conversation and ad-hoc queries, Prometheus metrics, and a websocket
// feed of conversation events.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/nlweb-voice/pkg/conversation"
	"github.com/teslashibe/nlweb-voice/pkg/hub"
	"github.com/teslashibe/nlweb-voice/pkg/nlweb"
	"github.com/teslashibe/nlweb-voice/pkg/router"
)

// Event types published on /ws/events.
const (
	EventStatus     = "status"
	EventTransition = "transition"
	EventExchange   = "exchange"
)

// maxExchanges bounds the exchange log kept for /api/conversation.
const maxExchanges = 100

// StatusReporter reports the conversation state. *conversation.Machine implements it.
type StatusReporter interface {
	Status() conversation.Status
}

// Responder answers text queries. *router.Router implements it.
type Responder interface {
	Route(ctx context.Context, text string) router.Reply
}

// HealthChecker checks the knowledge service. *nlweb.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HistorySource exposes the recent turns sent to the knowledge service.
type HistorySource interface {
	Recent() []nlweb.Turn
}

// Deps are the components the dashboard reads from. Nil members disable
// the endpoints that need them.
type Deps struct {
	Machine  StatusReporter
	Router   Responder
	History  HistorySource
	Health   HealthChecker
	Gatherer prometheus.Gatherer
}

// Server is the dashboard HTTP server.
type Server struct {
	app    *fiber.App
	port   string
	deps   Deps
	events *hub.Hub
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	exchangesMu sync.RWMutex
	exchanges   []conversation.Exchange
}

// NewServer creates a dashboard server listening on port once started.
func NewServer(port string, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		port:      port,
		deps:      deps,
		events:    hub.New("events", logger),
		logger:    logger.With("component", "web"),
		ctx:       ctx,
		cancel:    cancel,
		exchanges: make([]conversation.Exchange, 0, maxExchanges),
	}
	go s.events.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:               "nlvoice dashboard",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/conversation", s.handleConversation)
	api.Get("/history", s.handleHistory)
	api.Post("/ask", s.handleAsk)
	api.Get("/classify", s.handleClassify)
	api.Get("/health", s.handleHealth)

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

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

// SetMachine attaches the conversation once it exists. The machine is
// usually built after the server so it can use RecordTransition as its
// observer. Call it before Start.
func (s *Server) SetMachine(m StatusReporter) {
	s.deps.Machine = m
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and blocks until shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard server stopped", "error", err)
		}
	}()
}

// RecordTransition publishes a state change. Pass it to conversation.WithObserver.
func (s *Server) RecordTransition(tr conversation.Transition) {
	if err := s.events.Publish(EventTransition, tr); err != nil {
		s.logger.Warn("publish transition failed", "error", err)
	}
}

// RecordExchange keeps an answered utterance for /api/conversation and
// publishes it. Pass it to conversation.WithExchangeObserver.
func (s *Server) RecordExchange(ex conversation.Exchange) {
	s.exchangesMu.Lock()
	s.exchanges = append(s.exchanges, ex)
	if len(s.exchanges) > maxExchanges {
		s.exchanges = s.exchanges[1:]
	}
	s.exchangesMu.Unlock()

	if err := s.events.Publish(EventExchange, ex); err != nil {
		s.logger.Warn("publish exchange failed", "error", err)
	}
}

// Exchanges returns a copy of the recorded exchanges, oldest first.
func (s *Server) Exchanges() []conversation.Exchange {
	s.exchangesMu.RLock()
	defer s.exchangesMu.RUnlock()
	out := make([]conversation.Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Hub returns the event hub.
func (s *Server) Hub() *hub.Hub {
	return s.events
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
