package nlweb

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Tier identifies one request strategy of the client.
type Tier int

const (
	// TierPrimary is the full streaming request with the language model.
	TierPrimary Tier = iota + 1
	// TierRetrieval is the streaming request with the language model disabled.
	TierRetrieval
	// TierSearch is the plain non-streaming search request.
	TierSearch
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierRetrieval:
		return "retrieval"
	case TierSearch:
		return "search"
	default:
		return "unknown"
	}
}

// Sentinel errors for common conditions.
var (
	// ErrNoRecommendations is returned by the retrieval tier when it has
	// nothing to list and no retrieval count to report.
	ErrNoRecommendations = errors.New("nlweb: retrieval returned no recommendations")

	// ErrEmptyResults is returned by the search tier for an empty result list.
	ErrEmptyResults = errors.New("nlweb: search returned no results")
)

// APIError is a non-200 response from the knowledge service.
type APIError struct {
	// Tier is the request strategy that failed.
	Tier Tier

	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the (truncated) response body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("nlweb [%s]: API error %d: %s", e.Tier, e.StatusCode, e.Message)
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// TierError wraps a transport or decode error with the tier it happened in.
type TierError struct {
	Tier Tier
	Err  error
}

// Error implements the error interface.
func (e *TierError) Error() string {
	return fmt.Sprintf("nlweb [%s]: %v", e.Tier, e.Err)
}

// Unwrap returns the underlying error.
func (e *TierError) Unwrap() error {
	return e.Err
}

// wrapTier wraps err with tier context.
func wrapTier(t Tier, err error) error {
	if err == nil {
		return nil
	}
	return &TierError{Tier: t, Err: err}
}

// IsTimeout reports whether err is a deadline or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// messageFor converts a terminal tier error into the spoken apology.
func messageFor(t Tier, err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return TierFailureMessage(apiErr.Tier)
	case errors.Is(err, context.Canceled):
		return MsgCancelled
	case IsTimeout(err):
		return MsgTimedOut
	case errors.Is(err, ErrEmptyResults):
		return MsgNoInformation
	default:
		// *url.Error from http.Client.Do implements net.Error: refused, DNS, TLS.
		var netErr net.Error
		if errors.As(err, &netErr) {
			return MsgUnreachable
		}
		return TierFailureMessage(t)
	}
}
