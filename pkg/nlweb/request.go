package nlweb

import "time"

// QueryRequest is the JSON body of POST /ask.
type QueryRequest struct {
	Query             string   `json:"query"`
	TopK              int      `json:"top_k"`
	EmbeddingProvider string   `json:"embedding_provider"`
	EmbeddingModel    string   `json:"embedding_model"`
	DatabaseEndpoint  string   `json:"database_endpoint"`
	Sites             []string `json:"sites"`

	// LLMTimeout is in seconds. Omitted on retrieval-only requests.
	LLMTimeout int  `json:"llm_timeout,omitempty"`
	MaxTokens  int  `json:"max_tokens,omitempty"`
	DisableLLM bool `json:"disable_llm,omitempty"`

	ConversationHistory []Turn `json:"conversation_history,omitempty"`
}

// Turn is one answered exchange, sent as conversation context.
type Turn struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// primaryRequest builds the full-parameter request.
func (c *Client) primaryRequest(query string, history []Turn) QueryRequest {
	return QueryRequest{
		Query:               query,
		TopK:                c.config.TopK,
		EmbeddingProvider:   c.config.EmbeddingProvider,
		EmbeddingModel:      c.config.EmbeddingModel,
		DatabaseEndpoint:    c.config.DatabaseEndpoint,
		Sites:               c.config.Sites,
		LLMTimeout:          c.config.LLMTimeoutSeconds,
		MaxTokens:           c.config.MaxTokens,
		ConversationHistory: history,
	}
}

// retrievalRequest builds the no-LLM request used after a primary timeout.
func (c *Client) retrievalRequest(query string) QueryRequest {
	return QueryRequest{
		Query:             query,
		TopK:              c.config.FallbackTopK,
		EmbeddingProvider: c.config.EmbeddingProvider,
		EmbeddingModel:    c.config.EmbeddingModel,
		DatabaseEndpoint:  c.config.DatabaseEndpoint,
		Sites:             c.config.Sites,
		DisableLLM:        true,
	}
}
