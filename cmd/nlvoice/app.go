package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/teslashibe/nlweb-voice/internal/config"
	"github.com/teslashibe/nlweb-voice/internal/httpc"
	"github.com/teslashibe/nlweb-voice/pkg/cache"
	"github.com/teslashibe/nlweb-voice/pkg/conversation"
	"github.com/teslashibe/nlweb-voice/pkg/nlweb"
	"github.com/teslashibe/nlweb-voice/pkg/router"
	"github.com/teslashibe/nlweb-voice/pkg/speech"
	"github.com/teslashibe/nlweb-voice/pkg/web"
)

const (
	startupHealthTimeout = 5 * time.Second
	testPause            = 2 * time.Second

	// greetingFormat takes the wake word.
	greetingFormat = "Hello! I'm your podcast voice assistant. I can help you find episodes from Behind the Tech and Decoder. Say %q when you want to ask something."
	sessionEnded   = "Session ended. Goodbye!"
)

// app holds the wired components shared by every mode.
type app struct {
	cfg      *config.Config
	base     *slog.Logger
	logger   *slog.Logger
	registry *prometheus.Registry
	cache    cache.Cache
	client   *nlweb.Client
	router   *router.Router
	voice    *speech.Chain
}

// build wires the query pipeline from cfg. Spoken output that falls back to
// the console is written to out.
func build(ctx context.Context, cfg *config.Config, base *slog.Logger, out io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		base:     base,
		logger:   base.With("component", "nlvoice"),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.cache = store

	opts := []nlweb.Option{
		nlweb.WithBaseURL(cfg.NLWeb.BaseURL),
		nlweb.WithSites(cfg.NLWeb.Sites...),
		nlweb.WithTopK(cfg.NLWeb.TopK, cfg.NLWeb.FallbackTopK),
		nlweb.WithEmbedding(cfg.NLWeb.EmbeddingProvider, cfg.NLWeb.EmbeddingModel),
		nlweb.WithDatabaseEndpoint(cfg.NLWeb.DatabaseEndpoint),
		nlweb.WithLLMTimeout(cfg.NLWeb.LLMTimeoutSeconds),
		nlweb.WithMaxTokens(cfg.NLWeb.MaxTokens),
		nlweb.WithSearchLimit(cfg.NLWeb.SearchLimit),
		nlweb.WithTierTimeouts(cfg.NLWeb.PrimaryTimeout, cfg.NLWeb.RetrievalTimeout, cfg.NLWeb.SearchTimeout),
		nlweb.WithMetrics(nlweb.NewMetrics(a.registry)),
		nlweb.WithLogger(base),
	}
	if store != nil {
		opts = append(opts, nlweb.WithCache(store, cfg.Cache.TTL))
	}
	a.client = nlweb.NewClient(opts...)

	a.router = router.New(a.client,
		router.WithHistory(router.NewHistory(cfg.Conversation.HistorySize)),
		router.WithLogger(base),
	)
	a.voice = newVoice(cfg.Conversation.SpeakCommand, out, base)
	return a, nil
}

// newCache opens the configured answer cache. "none" yields nil.
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		store, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// newVoice speaks through the external command when it is installed and
// always falls back to the console.
func newVoice(command string, out io.Writer, logger *slog.Logger) *speech.Chain {
	var speakers []speech.Speaker
	if command != "" {
		cmd := speech.NewCommand(command)
		if cmd.Available() {
			speakers = append(speakers, cmd)
		} else {
			logger.Warn("speak command not found, using console output", "command", command)
		}
	}
	speakers = append(speakers, speech.NewConsole(out))
	return speech.NewChain(logger, speakers...)
}

// checkHealth logs whether the knowledge service answers. Failure is not
// fatal: the fallback tiers still produce spoken apologies.
func (a *app) checkHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, startupHealthTimeout)
	defer cancel()
	if err := a.client.Health(ctx); err != nil {
		a.logger.Warn("knowledge service not reachable", "url", a.client.BaseURL(), "error", err)
		return false
	}
	a.logger.Info("knowledge service reachable", "url", a.client.BaseURL())
	return true
}

// runInteractive runs the wake-word conversation over lines read from in.
func (a *app) runInteractive(ctx context.Context, in io.Reader) error {
	a.checkHealth(ctx)

	var dashboard *web.Server
	machineOpts := []conversation.Option{
		conversation.WithWakeWord(a.cfg.Conversation.WakeWord),
		conversation.WithTimeouts(a.cfg.Conversation.ResponseTimeout, a.cfg.Conversation.FollowUpTimeout),
		conversation.WithListenTimeout(a.cfg.Conversation.ListenTimeout),
		conversation.WithQueueSize(a.cfg.Conversation.QueueSize),
		conversation.WithLogger(a.base),
	}
	if a.cfg.Web.Enabled {
		dashboard = web.NewServer(a.cfg.Web.Port, web.Deps{
			Router:   a.router,
			History:  a.router.History(),
			Health:   a.client,
			Gatherer: a.registry,
		}, a.base)
		machineOpts = append(machineOpts,
			conversation.WithObserver(dashboard.RecordTransition),
			conversation.WithExchangeObserver(dashboard.RecordExchange),
		)
	}

	machine := conversation.New(a.router, a.voice, machineOpts...)
	if dashboard != nil {
		dashboard.SetMachine(machine)
		dashboard.StartAsync()
		defer dashboard.Shutdown()
	}

	a.logger.Info("interactive mode started",
		"wake_word", a.cfg.Conversation.WakeWord,
		"exit_phrases", strings.Join(conversation.DefaultExitPhrases, ", "))
	a.voice.Say(ctx, fmt.Sprintf(greetingFormat, a.cfg.Conversation.WakeWord))

	listener := speech.NewLineListener(in)
	defer listener.Close()

	loop := conversation.NewLoop(machine, listener)
	err := loop.Run(ctx)

	a.voice.Say(context.WithoutCancel(ctx), sessionEnded)
	if dropped := loop.Dropped(); dropped > 0 {
		a.logger.Warn("utterances dropped while busy", "count", dropped)
	}
	return err
}

// runAsk answers a single question and prints the reply.
func (a *app) runAsk(ctx context.Context, out io.Writer, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("ask: a question is required")
	}
	reply := a.router.Route(ctx, question)
	_, err := fmt.Fprintln(out, reply.Text)
	return err
}

// runTest sends a canned query set through the router and logs each reply.
func (a *app) runTest(ctx context.Context, set string) error {
	queries, ok := testQueries[set]
	if !ok {
		return fmt.Errorf("unknown test set %q (want quick, full or debug)", set)
	}
	a.checkHealth(ctx)
	a.logger.Info("running test queries", "set", set, "count", len(queries))

	for i, q := range queries {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(testPause):
			}
		}
		started := time.Now()
		reply := a.router.Route(ctx, q)
		a.logger.Info("test query",
			"n", i+1,
			"query", q,
			"intent", reply.Intent,
			"latency", time.Since(started).Round(time.Millisecond),
			"response", reply.Text)
	}
	return nil
}

// runServe serves the dashboard until ctx is cancelled.
func (a *app) runServe(ctx context.Context) error {
	a.checkHealth(ctx)

	dashboard := web.NewServer(a.cfg.Web.Port, web.Deps{
		Router:   a.router,
		History:  a.router.History(),
		Health:   a.client,
		Gatherer: a.registry,
	}, a.base)

	errc := make(chan error, 1)
	go func() { errc <- dashboard.Start() }()

	select {
	case <-ctx.Done():
		return dashboard.Shutdown()
	case err := <-errc:
		return err
	}
}

// Close releases the cache connection and idle knowledge service connections.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}
	httpc.CloseIdle()
}
