package web

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/nlweb-voice/pkg/hub"
	"github.com/teslashibe/nlweb-voice/pkg/router"
)

// healthTimeout bounds the knowledge service health check.
const healthTimeout = 5 * time.Second

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Text string `json:"text"`
}

// AskResponse is the reply to POST /api/ask.
type AskResponse struct {
	Intent  router.Intent `json:"intent"`
	Text    string        `json:"text"`
	Latency string        `json:"latency"`
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus returns the conversation state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.deps.Machine == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "conversation not running")
	}
	return c.JSON(s.deps.Machine.Status())
}

// handleConversation returns recorded exchanges.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	return c.JSON(s.Exchanges())
}

// handleHistory returns the turns sent as context with the next query.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return c.JSON([]any{})
	}
	turns := s.deps.History.Recent()
	if turns == nil {
		return c.JSON([]any{})
	}
	return c.JSON(turns)
}

// handleAsk routes a typed query as if it had been spoken during an active
// conversation.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	if s.deps.Router == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "router not configured")
	}

	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	started := time.Now()
	reply := s.deps.Router.Route(c.UserContext(), text)
	latency := time.Since(started)
	s.logger.Info("dashboard query", "intent", reply.Intent, "latency", latency)

	return c.JSON(AskResponse{
		Intent:  reply.Intent,
		Text:    reply.Text,
		Latency: latency.Round(time.Millisecond).String(),
	})
}

// handleClassify reports the intent of ?text= without answering it.
func (s *Server) handleClassify(c *fiber.Ctx) error {
	text := strings.TrimSpace(c.Query("text"))
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}
	return c.JSON(fiber.Map{"text": text, "intent": router.Classify(text)})
}

// handleHealth checks the knowledge service.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.deps.Health == nil {
		return c.JSON(fiber.Map{"status": "ok", "nlweb": "unchecked"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()
	if err := s.deps.Health.Health(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"nlweb":  "unreachable",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "nlweb": "reachable"})
}

// handleEventsWS streams conversation events. The first frame is the
// current status when a machine is attached.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client := hub.NewClient(s.events, conn)
	if s.deps.Machine != nil {
		if msg, err := hub.NewEvent(EventStatus, s.deps.Machine.Status()).Encode(); err == nil {
			client.Send(msg)
		}
	}
	client.Run()
}
