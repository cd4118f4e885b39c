// Package cache stores spoken answers keyed by normalized query.
//
// Two backends are provided: Memory for a single process and Redis for
// sharing answers between assistants pointed at the same knowledge service.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is an answer store.
type Cache interface {
	// Get returns the cached answer or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores an answer. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}

// Key normalizes a query so trivially different phrasings share an entry:
// lower case, collapsed whitespace, trailing punctuation removed.
func Key(query string) string {
	q := strings.ToLower(strings.Join(strings.Fields(query), " "))
	q = strings.TrimRight(q, "?!. ")
	if q == "" {
		return ""
	}
	return "nlvoice:answer:" + q
}
