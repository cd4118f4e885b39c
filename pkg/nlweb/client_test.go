package nlweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/nlweb-voice/internal/log"
	"github.com/teslashibe/nlweb-voice/pkg/cache"
)

// writeStream writes event-stream lines and flushes.
func writeStream(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, line := range lines {
		fmt.Fprintf(w, "data: %s\n\n", line)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// stall blocks until the client gives up or the test server shuts down.
func stall(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func decodeRequest(t *testing.T, r *http.Request) QueryRequest {
	t.Helper()
	var req QueryRequest
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(url),
		WithLogger(log.Discard()),
		WithTierTimeouts(2*time.Second, 2*time.Second, 2*time.Second),
	}
	return NewClient(append(base, opts...)...)
}

func TestClientAskPrimary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		req := decodeRequest(t, r)
		assert.Equal(t, "tell me about AI episodes", req.Query)
		assert.Equal(t, 3, req.TopK)
		assert.Equal(t, "ollama", req.EmbeddingProvider)
		assert.Equal(t, "qwen3:0.6b", req.EmbeddingModel)
		assert.Equal(t, "qdrant_local", req.DatabaseEndpoint)
		assert.Equal(t, []string{"Behind-the-Tech", "Decoder"}, req.Sites)
		assert.Equal(t, 15, req.LLMTimeout)
		assert.Equal(t, 200, req.MaxTokens)
		assert.False(t, req.DisableLLM)
		require.Len(t, req.ConversationHistory, 1)
		assert.Equal(t, "who is Kevin Scott", req.ConversationHistory[0].Question)

		writeStream(w,
			`{"message_type":"retrieval_count","count":2}`,
			`{"message_type":"ensemble_result","result":{"recommendations":[{"item":"Episode A"},{"item":"Episode B"}]}}`,
			`[DONE]`,
		)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	history := []Turn{{ID: "1", Question: "who is Kevin Scott", Answer: "The CTO of Microsoft.", Timestamp: time.Now()}}

	answer := client.Ask(context.Background(), "tell me about AI episodes", history)
	assert.Equal(t, "Here are relevant podcast episodes: 1. Episode A 2. Episode B", answer)
}

func TestClientRequestOmitsRetrievalOnlyFields(t *testing.T) {
	client := NewClient()
	body, err := json.Marshal(client.primaryRequest("q", nil))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "disable_llm")
	assert.NotContains(t, string(body), "conversation_history")

	body, err = json.Marshal(client.retrievalRequest("q"))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"disable_llm":true`)
	assert.Contains(t, string(body), `"top_k":5`)
	assert.NotContains(t, string(body), "llm_timeout")
	assert.NotContains(t, string(body), "max_tokens")
}

func TestClientPrimaryTimeoutFallsBackToRetrieval(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		calls.Add(1)
		if !req.DisableLLM {
			stall(r)
			return
		}
		assert.Equal(t, 5, req.TopK)
		writeStream(w,
			`{"message_type":"retrieval_count","count":7}`,
			`{"message_type":"ensemble_result","result":{"recommendations":{"recommendations":[{"item":"Episode A"},{"item":"Episode B"},{"item":"Episode C"}]}}}`,
			`[DONE]`,
		)
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithTierTimeouts(100*time.Millisecond, 2*time.Second, 2*time.Second))

	answer := client.Ask(context.Background(), "latest AI news", nil)
	assert.Equal(t, "I found 7 episodes. Here are the top matches: 1. Episode A 2. Episode B", answer)
	assert.NotContains(t, answer, "Episode C")
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientTimeoutMidStreamFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if !req.DisableLLM {
			writeStream(w, `{"message_type":"retrieval_count","count":3}`)
			stall(r)
			return
		}
		writeStream(w, `{"message_type":"retrieval_count","count":3}`, `[DONE]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithTierTimeouts(150*time.Millisecond, 2*time.Second, 2*time.Second))

	answer := client.Ask(context.Background(), "slow question", nil)
	assert.Equal(t, fmt.Sprintf(MsgFoundNoFormat, 3), answer)
}

func TestClientRetrievalZeroCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if req := decodeRequest(t, r); !req.DisableLLM {
			stall(r)
			return
		}
		writeStream(w, `{"message_type":"retrieval_count","count":0}`, `[DONE]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithTierTimeouts(100*time.Millisecond, 2*time.Second, 2*time.Second))
	assert.Equal(t, MsgNoRelevantEpisodes, client.Ask(context.Background(), "gardening", nil))
}

func TestClientFallsBackToSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", func(w http.ResponseWriter, r *http.Request) {
		if req := decodeRequest(t, r); !req.DisableLLM {
			stall(r)
			return
		}
		writeStream(w, `{"message_type":"license","content":"x"}`, `[DONE]`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quantum computing", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"title":"Episode A","url":"https://a"},{"item":"Episode B"},{"title":"Episode C"},{"title":"Episode D"}]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL, WithTierTimeouts(100*time.Millisecond, 2*time.Second, 2*time.Second))

	answer := client.Ask(context.Background(), "quantum computing", nil)
	assert.Equal(t, "I found these episodes: Episode A, Episode B, Episode C", answer)
}

func TestClientSearchEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", func(w http.ResponseWriter, r *http.Request) {
		if req := decodeRequest(t, r); !req.DisableLLM {
			stall(r)
			return
		}
		writeStream(w, `[DONE]`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL, WithTierTimeouts(100*time.Millisecond, 2*time.Second, 2*time.Second))
	assert.Equal(t, MsgNoInformation, client.Ask(context.Background(), "nothing", nil))
}

func TestClientNon200(t *testing.T) {
	tests := []struct {
		name    string
		primary int
		retry   int
		search  int
		want    string
	}{
		{"primary", http.StatusInternalServerError, 0, 0, TierFailureMessage(TierPrimary)},
		{"retrieval", 0, http.StatusBadGateway, 0, TierFailureMessage(TierRetrieval)},
		{"search", 0, http.StatusOK, http.StatusServiceUnavailable, TierFailureMessage(TierSearch)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/ask", func(w http.ResponseWriter, r *http.Request) {
				req := decodeRequest(t, r)
				switch {
				case !req.DisableLLM && tt.primary != 0:
					http.Error(w, "boom", tt.primary)
				case !req.DisableLLM:
					stall(r)
				case tt.retry != http.StatusOK:
					http.Error(w, "boom", tt.retry)
				default:
					writeStream(w, `[DONE]`)
				}
			})
			mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tt.search)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			client := newTestClient(server.URL, WithTierTimeouts(100*time.Millisecond, 2*time.Second, 2*time.Second))
			assert.Equal(t, tt.want, client.Ask(context.Background(), "question", nil))
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTestClient(url)
	assert.Equal(t, MsgUnreachable, client.Ask(context.Background(), "anyone there", nil))
}

func TestClientCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stall(r)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	client := newTestClient(server.URL)
	assert.Equal(t, MsgCancelled, client.Ask(ctx, "never mind", nil))
}

func TestClientEmptyQuery(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	assert.Equal(t, MsgEmptyQuery, client.Ask(context.Background(), "   ", nil))
}

func TestClientCacheAndMetrics(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeStream(w,
			`{"message_type":"complete","answer":"Decoder is a podcast about big ideas."}`,
			`[DONE]`,
		)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := newTestClient(server.URL, WithCache(cache.NewMemory(), time.Minute), WithMetrics(metrics))

	first := client.Ask(context.Background(), "What is Decoder?", nil)
	second := client.Ask(context.Background(), "what is decoder", nil)

	assert.Equal(t, "Decoder is a podcast about big ideas.", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("primary", "answer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.events.WithLabelValues("complete")))
}

func TestClientDoesNotCacheEmptyOutcomes(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeStream(w, `{"message_type":"retrieval_count","count":0}`, `[DONE]`)
	}))
	defer server.Close()

	store := cache.NewMemory()
	client := newTestClient(server.URL, WithCache(store, time.Minute))

	client.Ask(context.Background(), "gardening", nil)
	client.Ask(context.Background(), "gardening", nil)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestClientHealth(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL + "/")
	assert.NoError(t, client.Health(context.Background()))

	unhealthy.Store(true)
	assert.Error(t, client.Health(context.Background()))
}

func TestMessageFor(t *testing.T) {
	assert.Equal(t, TierFailureMessage(TierRetrieval), messageFor(TierPrimary, &APIError{Tier: TierRetrieval, StatusCode: 500}))
	assert.Equal(t, MsgCancelled, messageFor(TierPrimary, wrapTier(TierPrimary, context.Canceled)))
	assert.Equal(t, MsgTimedOut, messageFor(TierSearch, context.DeadlineExceeded))
	assert.Equal(t, MsgNoInformation, messageFor(TierSearch, ErrEmptyResults))
	assert.Equal(t, TierFailureMessage(TierSearch), messageFor(TierSearch, fmt.Errorf("decode response: bad")))
}
