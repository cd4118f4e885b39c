package nlweb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Search runs the plain non-streaming search. The service answers with a
// JSON array of records; an object holding a results list is accepted too.
func (c *Client) Search(ctx context.Context, query string) ([]Recommendation, error) {
	started := time.Now()

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(c.config.SearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, wrapTier(TierSearch, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.search.Do(req)
	if err != nil {
		c.metrics.observeRequest(TierSearch, resultLabel(err), started)
		return nil, wrapTier(TierSearch, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		err := parseError(TierSearch, resp)
		c.metrics.observeRequest(TierSearch, resultLabel(err), started)
		return nil, err
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.metrics.observeRequest(TierSearch, "error", started)
		return nil, wrapTier(TierSearch, fmt.Errorf("decode response: %w", err))
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["results"].([]any)
	}

	recs := toRecommendations(items)
	if c.config.SearchLimit > 0 && len(recs) > c.config.SearchLimit {
		recs = recs[:c.config.SearchLimit]
	}
	if len(recs) == 0 {
		c.metrics.observeRequest(TierSearch, "empty", started)
		return nil, ErrEmptyResults
	}

	c.metrics.observeRequest(TierSearch, "ok", started)
	return recs, nil
}

// askSearch renders the search tier answer: "I found these episodes: A, B".
func (c *Client) askSearch(ctx context.Context, query string) (string, error) {
	recs, err := c.Search(ctx, query)
	if err != nil {
		return "", err
	}

	titles := make([]string, len(recs))
	for i, r := range recs {
		titles[i] = r.Title
	}
	return SearchLead + " " + strings.Join(titles, ", "), nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.search.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}
