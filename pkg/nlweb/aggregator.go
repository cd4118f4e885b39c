package nlweb

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// MaxSpokenRecommendations caps the enumerated list of a full answer.
const MaxSpokenRecommendations = 3

// Field name fallbacks, in lookup order.
var (
	batchFields = []string{"content", "results", "batch"}
	titleFields = []string{"title", "item", "name", "episode_title"}
	urlFields   = []string{"url", "link"}
	recsFields  = []string{"recommendations", "Recommendations"}
)

// Recommendation is a candidate answer item. Equality is by title.
type Recommendation struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Outcome records which precedence rule produced a result.
type Outcome int

const (
	// OutcomeNoResults means nothing relevant was found.
	OutcomeNoResults Outcome = iota
	// OutcomeNoSummary means documents were found but no text was produced.
	OutcomeNoSummary
	// OutcomeRecommendations means the answer enumerates recommendations.
	OutcomeRecommendations
	// OutcomeAnswer means the complete event's answer was used.
	OutcomeAnswer
	// OutcomeContent means streamed content fragments were used.
	OutcomeContent
)

// String returns a short label, used for metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoSummary:
		return "no_summary"
	case OutcomeRecommendations:
		return "recommendations"
	case OutcomeAnswer:
		return "answer"
	case OutcomeContent:
		return "content"
	default:
		return "no_results"
	}
}

// Answered reports whether the outcome carries real content worth caching.
func (o Outcome) Answered() bool {
	return o == OutcomeRecommendations || o == OutcomeAnswer || o == OutcomeContent
}

// AggregatedResult is the final product of one query.
type AggregatedResult struct {
	Text                string
	RecommendationCount int
	RetrievalCount      int
	Outcome             Outcome
}

// AggregationState accumulates one query's events. It is owned by a single
// aggregation and never shared.
type AggregationState struct {
	// RetrievalCount is -1 until the service reports it.
	RetrievalCount   int
	Recommendations  []Recommendation
	AssembledContent string
	FinalAnswer      string

	// ShortCircuited is set when a zero retrieval count ended aggregation.
	ShortCircuited bool

	titles map[string]struct{}
}

// NewAggregationState returns an empty state.
func NewAggregationState() *AggregationState {
	return &AggregationState{
		RetrievalCount: -1,
		titles:         make(map[string]struct{}),
	}
}

// appendRecommendation adds a recommendation unless its title is already present.
func (s *AggregationState) appendRecommendation(r Recommendation) bool {
	if r.Title == "" {
		return false
	}
	if _, seen := s.titles[r.Title]; seen {
		return false
	}
	s.titles[r.Title] = struct{}{}
	s.Recommendations = append(s.Recommendations, r)
	return true
}

// replaceRecommendations swaps in a finalized list when it is non-empty.
func (s *AggregationState) replaceRecommendations(recs []Recommendation) {
	if len(recs) == 0 {
		return
	}
	s.Recommendations = nil
	s.titles = make(map[string]struct{}, len(recs))
	for _, r := range recs {
		s.appendRecommendation(r)
	}
}

// Result applies the precedence rules and cleanup to the accumulated state.
func (s *AggregationState) Result() AggregatedResult {
	res := AggregatedResult{
		RecommendationCount: len(s.Recommendations),
		RetrievalCount:      s.RetrievalCount,
	}

	if s.ShortCircuited {
		res.Text = MsgNoRelevantEpisodes
		res.Outcome = OutcomeNoResults
		return res
	}

	if len(s.Recommendations) > 0 {
		if text := Clean(FormatRecommendations(RecommendationsLead, s.Recommendations, MaxSpokenRecommendations)); text != "" {
			res.Text, res.Outcome = text, OutcomeRecommendations
			return res
		}
	}
	// A present final answer shadows assembled content even if it cleans to "".
	switch {
	case strings.TrimSpace(s.FinalAnswer) != "":
		if text := Clean(s.FinalAnswer); text != "" {
			res.Text, res.Outcome = text, OutcomeAnswer
			return res
		}
	case strings.TrimSpace(s.AssembledContent) != "":
		if text := Clean(s.AssembledContent); text != "" {
			res.Text, res.Outcome = text, OutcomeContent
			return res
		}
	}

	if s.RetrievalCount > 0 {
		res.Text, res.Outcome = fmt.Sprintf(MsgFoundNoSummary, s.RetrievalCount), OutcomeNoSummary
		return res
	}
	res.Text, res.Outcome = MsgNoInformation, OutcomeNoResults
	return res
}

// FormatRecommendations renders "lead 1. A 2. B" with at most max items.
func FormatRecommendations(lead string, recs []Recommendation, max int) string {
	parts := []string{lead}
	for i, r := range recs {
		if i >= max {
			break
		}
		parts = append(parts, strconv.Itoa(i+1)+". "+r.Title)
	}
	return strings.Join(parts, " ")
}

// Aggregator turns an event sequence into an answer.
type Aggregator struct {
	logger *slog.Logger

	// OnEvent, when set, observes every event before it is applied.
	OnEvent func(Event)
}

// NewAggregator creates an aggregator. A nil logger uses slog.Default.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger.With("component", "nlweb.aggregator")}
}

// Aggregate consumes src and returns the final result. A read error is
// returned alongside the best-effort result built from what arrived.
func (a *Aggregator) Aggregate(src EventSource) (AggregatedResult, error) {
	state, err := a.Collect(src)
	return state.Result(), err
}

// Collect consumes src until the stream ends, a complete event arrives, or a
// zero retrieval count short-circuits aggregation.
func (a *Aggregator) Collect(src EventSource) (*AggregationState, error) {
	state := NewAggregationState()
	for {
		ev, err := src.Recv()
		if errors.Is(err, io.EOF) {
			return state, nil
		}
		if err != nil {
			return state, err
		}
		if a.OnEvent != nil {
			a.OnEvent(ev)
		}
		if stop := a.apply(state, ev); stop {
			return state, nil
		}
	}
}

// apply folds one event into the state. It returns true when aggregation is over.
func (a *Aggregator) apply(s *AggregationState, ev Event) bool {
	switch ev.Kind {
	case KindRetrievalCount:
		count, ok := ev.Int("count")
		if !ok {
			count = 0
		}
		s.RetrievalCount = count
		a.logger.Debug("retrieval count", "count", count)
		if count == 0 {
			s.ShortCircuited = true
			return true
		}

	case KindEnsembleResult:
		recs := ensembleRecommendations(ev)
		s.replaceRecommendations(recs)
		a.logger.Debug("ensemble result", "recommendations", len(recs))

	case KindResultBatch:
		a.applyBatch(s, ev)

	case KindComplete:
		s.FinalAnswer = ev.Text("answer", "content")
		if len(s.Recommendations) == 0 {
			a.logger.Debug("complete without recommendations", "has_answer", s.FinalAnswer != "")
		}
		return true

	case KindContentFragment:
		content := ev.Text("content")
		if content != "" && !IsBoilerplate(content) {
			s.AssembledContent += content
		}

	case KindMetadata, KindUnknown:
	}
	return false
}

func (a *Aggregator) applyBatch(s *AggregationState, ev Event) {
	for _, name := range batchFields {
		raw, ok := ev.Field(name)
		if !ok {
			continue
		}
		switch batch := raw.(type) {
		case []any:
			added := 0
			for _, item := range batch {
				if rec, ok := toRecommendation(item); ok && s.appendRecommendation(rec) {
					added++
				}
			}
			a.logger.Debug("result batch", "records", len(batch), "added", added, "total", len(s.Recommendations))
		case string:
			if strings.TrimSpace(batch) != "" {
				s.AssembledContent += batch + " "
			}
		default:
			a.logger.Debug("unexpected result batch shape", "field", name)
		}
		return
	}
}

// ensembleRecommendations digs the recommendation list out of an ensemble
// result. Accepted shapes: result.recommendations as a list, or as an object
// holding recommendations / Recommendations; result.Recommendations likewise.
func ensembleRecommendations(ev Event) []Recommendation {
	raw, _ := ev.Field("result")
	result, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	for _, outer := range recsFields {
		switch v := result[outer].(type) {
		case []any:
			return toRecommendations(v)
		case map[string]any:
			for _, inner := range recsFields {
				if list, ok := v[inner].([]any); ok && len(list) > 0 {
					return toRecommendations(list)
				}
			}
		}
	}
	return nil
}

func toRecommendations(items []any) []Recommendation {
	recs := make([]Recommendation, 0, len(items))
	for _, item := range items {
		if rec, ok := toRecommendation(item); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

func toRecommendation(item any) (Recommendation, bool) {
	record, ok := item.(map[string]any)
	if !ok {
		return Recommendation{}, false
	}
	title := firstString(record, titleFields)
	if title == "" {
		return Recommendation{}, false
	}
	return Recommendation{Title: title, URL: firstString(record, urlFields)}, true
}

func firstString(record map[string]any, names []string) string {
	for _, name := range names {
		if s, ok := record[name].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
