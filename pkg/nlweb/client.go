package nlweb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/nlweb-voice/internal/httpc"
	"github.com/teslashibe/nlweb-voice/pkg/cache"
)

// MaxRetrievalRecommendations caps the list spoken by the retrieval tier.
const MaxRetrievalRecommendations = 2

// maxErrorBody bounds how much of a failed response is kept in APIError.
const maxErrorBody = 512

// Client asks the knowledge service questions and always produces speakable text.
type Client struct {
	baseURL string
	config  *Config
	logger  *slog.Logger
	metrics *Metrics

	// One HTTP client per tier so each carries its own overall timeout.
	primary   *http.Client
	retrieval *http.Client
	search    *http.Client
}

// NewClient creates a new knowledge service client.
func NewClient(opts ...Option) *Client {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		config:    cfg,
		logger:    cfg.Logger.With("component", "nlweb.client"),
		metrics:   cfg.Metrics,
		primary:   httpc.NewClient(cfg.PrimaryTimeout),
		retrieval: httpc.NewClient(cfg.RetrievalTimeout),
		search:    httpc.NewClient(cfg.SearchTimeout),
	}
}

// BaseURL returns the service URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask answers query using the tiered strategy. It never fails: transport,
// protocol and empty-result conditions all end in a spoken message.
func (c *Client) Ask(ctx context.Context, query string, history []Turn) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return MsgEmptyQuery
	}

	logger := c.logger.With("request_id", uuid.NewString())
	key := cache.Key(query)
	if answer, ok := c.lookup(ctx, key); ok {
		logger.Debug("answer served from cache", "query", query)
		return answer
	}

	logger.Info("asking knowledge base", "query", query, "history", len(history))
	res, err := c.askPrimary(ctx, logger, query, history)
	if err == nil {
		logger.Info("answer ready", "outcome", res.Outcome, "recommendations", res.RecommendationCount, "retrieval_count", res.RetrievalCount)
		if res.Outcome.Answered() {
			c.store(ctx, key, res.Text)
		}
		return res.Text
	}
	if !IsTimeout(err) || errors.Is(err, context.Canceled) {
		logger.Warn("primary request failed", "error", err)
		return messageFor(TierPrimary, err)
	}

	logger.Warn("primary request timed out, retrying without language model", "error", err)
	text, err := c.askRetrieval(ctx, query)
	if err == nil {
		return text
	}
	if !IsTimeout(err) && !errors.Is(err, ErrNoRecommendations) {
		logger.Warn("retrieval request failed", "error", err)
		return messageFor(TierRetrieval, err)
	}

	logger.Warn("retrieval produced nothing, falling back to search", "error", err)
	text, err = c.askSearch(ctx, query)
	if err != nil {
		logger.Warn("search request failed", "error", err)
		return messageFor(TierSearch, err)
	}
	return text
}

// askPrimary runs the full streaming request. A stream that breaks for a
// reason other than a timeout still yields the partial result.
func (c *Client) askPrimary(ctx context.Context, logger *slog.Logger, query string, history []Turn) (AggregatedResult, error) {
	started := time.Now()

	resp, err := c.postStream(ctx, c.primary, TierPrimary, c.primaryRequest(query, history))
	if err != nil {
		c.metrics.observeRequest(TierPrimary, resultLabel(err), started)
		return AggregatedResult{}, err
	}
	defer drainAndClose(resp.Body)

	dec := NewDecoder(resp.Body)
	res, err := c.newAggregator().Aggregate(dec)
	c.metrics.observeDropped(dec.Dropped())
	if dec.Dropped() > 0 {
		logger.Debug("skipped malformed stream lines", "count", dec.Dropped())
	}
	if err != nil {
		if IsTimeout(err) {
			c.metrics.observeRequest(TierPrimary, "timeout", started)
			return AggregatedResult{}, wrapTier(TierPrimary, err)
		}
		logger.Warn("stream ended abnormally, using partial result", "error", err)
	}

	c.metrics.observeRequest(TierPrimary, res.Outcome.String(), started)
	return res, nil
}

// askRetrieval runs the no-LLM request and builds the short answer.
func (c *Client) askRetrieval(ctx context.Context, query string) (string, error) {
	started := time.Now()

	resp, err := c.postStream(ctx, c.retrieval, TierRetrieval, c.retrievalRequest(query))
	if err != nil {
		c.metrics.observeRequest(TierRetrieval, resultLabel(err), started)
		return "", err
	}
	defer drainAndClose(resp.Body)

	dec := NewDecoder(resp.Body)
	state, err := c.newAggregator().Collect(dec)
	c.metrics.observeDropped(dec.Dropped())
	if err != nil && len(state.Recommendations) == 0 && !state.ShortCircuited && state.RetrievalCount < 0 {
		c.metrics.observeRequest(TierRetrieval, resultLabel(err), started)
		return "", wrapTier(TierRetrieval, err)
	}

	text, err := retrievalAnswer(state)
	if err != nil {
		c.metrics.observeRequest(TierRetrieval, "empty", started)
		return "", err
	}
	c.metrics.observeRequest(TierRetrieval, "ok", started)
	return text, nil
}

// retrievalAnswer renders the short answer of the retrieval tier.
func retrievalAnswer(s *AggregationState) (string, error) {
	switch {
	case s.ShortCircuited:
		return MsgNoRelevantEpisodes, nil
	case len(s.Recommendations) > 0:
		lead := TopMatchesLead
		if s.RetrievalCount > 0 {
			lead = fmt.Sprintf("I found %d episodes. %s", s.RetrievalCount, TopMatchesLead)
		}
		return Clean(FormatRecommendations(lead, s.Recommendations, MaxRetrievalRecommendations)), nil
	case s.RetrievalCount > 0:
		return fmt.Sprintf(MsgFoundNoFormat, s.RetrievalCount), nil
	default:
		return "", ErrNoRecommendations
	}
}

func (c *Client) newAggregator() *Aggregator {
	agg := NewAggregator(c.config.Logger)
	if c.metrics != nil {
		agg.OnEvent = c.metrics.observeEvent
	}
	return agg
}

// postStream sends a query to /ask and returns the open event stream.
func (c *Client) postStream(ctx context.Context, hc *http.Client, tier Tier, payload QueryRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, wrapTier(tier, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(body))
	if err != nil {
		return nil, wrapTier(tier, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, wrapTier(tier, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseError(tier, resp)
	}
	return resp, nil
}

// parseError reads a failed response into an APIError.
func parseError(tier Tier, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Tier:       tier,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// drainAndClose reads a bounded remainder so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// resultLabel maps a tier error to a metrics label.
func resultLabel(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case IsTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}

func (c *Client) lookup(ctx context.Context, key string) (string, bool) {
	if c.config.Cache == nil || key == "" {
		return "", false
	}
	answer, err := c.config.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("cache lookup failed", "error", err)
		}
		c.metrics.observeCache(false)
		return "", false
	}
	c.metrics.observeCache(true)
	return answer, true
}

func (c *Client) store(ctx context.Context, key, answer string) {
	if c.config.Cache == nil || key == "" {
		return
	}
	if err := c.config.Cache.Set(ctx, key, answer, c.config.CacheTTL); err != nil {
		c.logger.Warn("cache store failed", "error", err)
	}
}
