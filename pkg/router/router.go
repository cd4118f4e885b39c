package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/nlweb-voice/pkg/nlweb"
)

// Asker answers knowledge questions. *nlweb.Client implements it.
type Asker interface {
	Ask(ctx context.Context, query string, history []nlweb.Turn) string
}

// Reply is a routed answer.
type Reply struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}

// Router dispatches utterances to local handlers or the knowledge service.
// Knowledge questions run one at a time, whoever calls Route.
type Router struct {
	askMu   sync.Mutex
	asker   Asker
	history *History
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithHistory shares a history between routers.
func WithHistory(h *History) Option {
	return func(r *Router) { r.history = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a router that sends knowledge questions to asker.
func New(asker Asker, opts ...Option) *Router {
	r := &Router{
		asker:   asker,
		history: NewHistory(DefaultHistorySize),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// History returns the conversation history used as knowledge context.
func (r *Router) History() *History {
	return r.history
}

// Route classifies text and produces the answer. Only knowledge and weather
// questions reach the network.
func (r *Router) Route(ctx context.Context, text string) Reply {
	intent := Classify(text)
	r.logger.Debug("routing utterance", "intent", intent, "text", text)

	switch intent {
	case IntentHelp:
		return Reply{Intent: intent, Text: HelpText}
	case IntentDateTime:
		return Reply{Intent: intent, Text: HandleDateTime(text, r.now())}
	case IntentCalculation:
		return Reply{Intent: intent, Text: HandleCalculation(text)}
	default:
		return Reply{Intent: intent, Text: r.ask(ctx, text)}
	}
}

// ask holds askMu across the query and the history update so each question
// sees every earlier answer as context.
func (r *Router) ask(ctx context.Context, text string) string {
	r.askMu.Lock()
	defer r.askMu.Unlock()
	answer := r.asker.Ask(ctx, text, r.history.Recent())
	r.history.Add(text, answer, r.now())
	return answer
}
