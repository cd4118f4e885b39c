package nlweb

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggregateStream(t *testing.T, stream string) AggregatedResult {
	t.Helper()
	res, err := NewAggregator(nil).Aggregate(NewDecoder(strings.NewReader(stream)))
	require.NoError(t, err)
	return res
}

func TestAggregateZeroRetrievalCount(t *testing.T) {
	res := aggregateStream(t, "data: {\"message_type\":\"retrieval_count\",\"count\":0}\ndata: [DONE]\n")

	assert.Equal(t, MsgNoRelevantEpisodes, res.Text)
	assert.Equal(t, 0, res.RetrievalCount)
	assert.Equal(t, OutcomeNoResults, res.Outcome)
}

func TestAggregateZeroCountStopsAccumulation(t *testing.T) {
	src := Events(
		NewEvent(map[string]any{"message_type": "retrieval_count", "count": float64(0)}),
		NewEvent(map[string]any{"message_type": "result_batch", "content": []any{
			map[string]any{"title": "Late Episode"},
		}}),
	)

	state, err := NewAggregator(nil).Collect(src)
	require.NoError(t, err)
	assert.True(t, state.ShortCircuited)
	assert.Empty(t, state.Recommendations)
	assert.Equal(t, MsgNoRelevantEpisodes, state.Result().Text)
}

func TestAggregateEnsembleRecommendations(t *testing.T) {
	stream := `data: {"message_type":"ensemble_result","result":{"recommendations":{"recommendations":[{"item":"Episode A"},{"item":"Episode B"}]}}}` + "\n" +
		"data: [DONE]\n"

	res := aggregateStream(t, stream)
	assert.Equal(t, "Here are relevant podcast episodes: 1. Episode A 2. Episode B", res.Text)
	assert.Equal(t, 2, res.RecommendationCount)
	assert.Equal(t, OutcomeRecommendations, res.Outcome)
}

func TestAggregateEnsembleShapes(t *testing.T) {
	recs := []any{map[string]any{"title": "Alpha"}, map[string]any{"name": "Beta"}}
	shapes := []map[string]any{
		{"recommendations": recs},
		{"Recommendations": recs},
		{"recommendations": map[string]any{"Recommendations": recs}},
		{"Recommendations": map[string]any{"recommendations": recs}},
	}
	for i, result := range shapes {
		ev := NewEvent(map[string]any{"message_type": "ensemble_result", "result": result})
		got := ensembleRecommendations(ev)
		assert.Equal(t, []Recommendation{{Title: "Alpha"}, {Title: "Beta"}}, got, "shape %d", i)
	}
}

func TestAggregateCapsAtThreeInOrder(t *testing.T) {
	var items []string
	for _, title := range []string{"One", "Two", "Three", "Four", "Five"} {
		items = append(items, fmt.Sprintf(`{"episode_title":%q,"link":"https://example.com/%s"}`, title, title))
	}
	stream := `data: {"message_type":"result_batch","results":[` + strings.Join(items, ",") + `]}` + "\n"

	res := aggregateStream(t, stream)
	assert.Equal(t, "Here are relevant podcast episodes: 1. One 2. Two 3. Three", res.Text)
	assert.Equal(t, 5, res.RecommendationCount)
	assert.NotContains(t, res.Text, "4.")
}

func TestAggregateDedupByTitle(t *testing.T) {
	stream := `data: {"message_type":"result_batch","content":[{"title":"Same"},{"title":"Other"}]}` + "\n" +
		`data: {"message_type":"result_batch","batch":[{"item":"Same"},{"title":"Third"}]}` + "\n"

	state, err := NewAggregator(nil).Collect(NewDecoder(strings.NewReader(stream)))
	require.NoError(t, err)
	assert.Equal(t, []Recommendation{{Title: "Same"}, {Title: "Other"}, {Title: "Third"}}, state.Recommendations)
}

func TestAggregateEnsembleReplacesBatch(t *testing.T) {
	src := Events(
		NewEvent(map[string]any{"message_type": "result_batch", "content": []any{
			map[string]any{"title": "Raw"},
		}}),
		NewEvent(map[string]any{"message_type": "ensemble_result", "result": map[string]any{
			"recommendations": []any{map[string]any{"item": "Final", "url": "https://x"}},
		}}),
	)

	state, err := NewAggregator(nil).Collect(src)
	require.NoError(t, err)
	assert.Equal(t, []Recommendation{{Title: "Final", URL: "https://x"}}, state.Recommendations)
}

func TestAggregateMalformedLineAmidValid(t *testing.T) {
	stream := `data: {"message_type":"retrieval_count","count":2}` + "\n" +
		`data: {"message_type":"result_batch","content":[{"title":"Kept One"}` + "\n" +
		`data: {"message_type":"result_batch","content":[{"title":"Kept Two"}]}` + "\n" +
		"data: [DONE]\n"

	res := aggregateStream(t, stream)
	assert.Equal(t, "Here are relevant podcast episodes: 1. Kept Two", res.Text)
	assert.Equal(t, 2, res.RetrievalCount)
}

func TestAggregateCompleteAnswer(t *testing.T) {
	stream := `data: {"message_type":"retrieval_count","count":3}` + "\n" +
		`data: {"content":"partial text that is long enough"}` + "\n" +
		`data: {"message_type":"complete","answer":"Kevin Scott talks about  AI\n with guests."}` + "\n" +
		`data: {"content":"ignored after complete"}` + "\n"

	res := aggregateStream(t, stream)
	assert.Equal(t, "Kevin Scott talks about AI with guests.", res.Text)
	assert.Equal(t, OutcomeAnswer, res.Outcome)
}

func TestAggregateContentFiltersBoilerplate(t *testing.T) {
	src := Events(
		NewEvent(map[string]any{"content": "Decoder covers "}),
		NewEvent(map[string]any{"content": LicenseNotice}),
		NewEvent(map[string]any{"content": "tech policy."}),
		NewEvent(map[string]any{"message_type": "data_retention", "content": RetentionNotice}),
		NewEvent(map[string]any{"content": UILinkNotice}),
	)

	res, err := NewAggregator(nil).Aggregate(src)
	require.NoError(t, err)
	assert.Equal(t, "Decoder covers tech policy.", res.Text)
	assert.Equal(t, OutcomeContent, res.Outcome)
}

func TestAggregateBatchString(t *testing.T) {
	src := Events(NewEvent(map[string]any{"message_type": "result_batch", "content": "A summary from a string batch"}))

	res, err := NewAggregator(nil).Aggregate(src)
	require.NoError(t, err)
	assert.Equal(t, "A summary from a string batch", res.Text)
}

func TestAggregateFoundNoSummary(t *testing.T) {
	src := Events(
		NewEvent(map[string]any{"message_type": "retrieval_count", "count": float64(6)}),
		NewEvent(map[string]any{"content": "short"}),
	)

	res, err := NewAggregator(nil).Aggregate(src)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(MsgFoundNoSummary, 6), res.Text)
	assert.Equal(t, OutcomeNoSummary, res.Outcome)
}

func TestCleanNestedBoilerplate(t *testing.T) {
	in := "The answer is here " + strings.Repeat("message_", 10) + strings.Repeat("type:", 10) + " done"
	assert.Equal(t, "The answer is here done", Clean(in))
}

func TestAggregateShortAnswerSkipsContent(t *testing.T) {
	src := Events(
		NewEvent(map[string]any{"message_type": "retrieval_count", "count": float64(4)}),
		NewEvent(map[string]any{"content": "Assembled content that is long enough to speak."}),
		NewEvent(map[string]any{"message_type": "complete", "answer": "  ok  "}),
	)

	res, err := NewAggregator(nil).Aggregate(src)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(MsgFoundNoSummary, 4), res.Text)
	assert.Equal(t, OutcomeNoSummary, res.Outcome)
}

func TestAggregateNothing(t *testing.T) {
	res, err := NewAggregator(nil).Aggregate(Events())
	require.NoError(t, err)
	assert.Equal(t, MsgNoInformation, res.Text)
	assert.Equal(t, -1, res.RetrievalCount)
}

func TestAggregateObservesEvents(t *testing.T) {
	var seen []Kind
	agg := NewAggregator(nil)
	agg.OnEvent = func(ev Event) { seen = append(seen, ev.Kind) }

	_, err := agg.Aggregate(Events(
		NewEvent(map[string]any{"message_type": "license"}),
		NewEvent(map[string]any{"content": "text"}),
	))
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindMetadata, KindContentFragment}, seen)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse", "  Hello \n\n  world,   how are you  ", "Hello world, how are you"},
		{"boilerplate", "Answer text here. " + LicenseNotice + " [End of response]", "Answer text here."},
		{"too short", "  ok  ", ""},
		{"only boilerplate", RetentionNotice, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanTruncates(t *testing.T) {
	got := Clean(strings.Repeat("word ", 400))
	assert.LessOrEqual(t, len([]rune(got)), MaxSpokenLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		strings.Repeat("word ", 400),
		"message_type: message_type:: query_id: something real here",
		"Data provided may be Data provided may be retained for up to 1 day. retained for up to 1 day. tail text",
		"\tTabs\tand\nnewlines   everywhere in this sentence\n",
		strings.Repeat("é", 900),
		"The answer is here " + strings.Repeat("message_", 10) + strings.Repeat("type:", 10) + " done",
		"lead " + strings.Repeat("query_", 20) + strings.Repeat("id:", 20) + " and the rest of the sentence",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %.40q", in)
	}
}
