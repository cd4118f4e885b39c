// Package nlweb is a client for the NLWeb knowledge service.
//
// It issues /ask requests, decodes the server-sent event stream into typed
// events, aggregates those events into a single answer suitable for speech,
// and falls back to cheaper requests when the language model is slow.
//
// Example usage:
//
//	client := nlweb.NewClient(
//	    nlweb.WithBaseURL("http://localhost:8000"),
//	    nlweb.WithSites("Behind-the-Tech", "Decoder"),
//	)
//	answer := client.Ask(ctx, "tell me about AI episodes", nil)
package nlweb

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind classifies a decoded stream event.
type Kind int

const (
	// KindUnknown is any record the aggregator has no rule for.
	KindUnknown Kind = iota
	// KindRetrievalCount carries the number of candidate documents.
	KindRetrievalCount
	// KindEnsembleResult carries a finalized recommendation list.
	KindEnsembleResult
	// KindResultBatch carries raw search results.
	KindResultBatch
	// KindComplete is the natural terminal event with the final answer.
	KindComplete
	// KindMetadata covers license, retention and UI component notices.
	KindMetadata
	// KindContentFragment is a piece of answer text.
	KindContentFragment
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRetrievalCount:
		return "retrieval_count"
	case KindEnsembleResult:
		return "ensemble_result"
	case KindResultBatch:
		return "result_batch"
	case KindComplete:
		return "complete"
	case KindMetadata:
		return "metadata"
	case KindContentFragment:
		return "content"
	default:
		return "unknown"
	}
}

// Message type discriminators used by the service.
const (
	TypeRetrievalCount = "retrieval_count"
	TypeEnsembleResult = "ensemble_result"
	TypeResultBatch    = "result_batch"
	TypeComplete       = "complete"
	TypeLicense        = "license"
	TypeDataRetention  = "data_retention"
	TypeUIComponent    = "ui_component"
)

// Event is one decoded record from the stream. It is immutable: fields are
// only reachable through accessors and NewEvent copies its input.
type Event struct {
	// Kind is the classification used by the aggregator.
	Kind Kind

	// Type is the raw message_type (or type) discriminator, if any.
	Type string

	fields map[string]any
}

// NewEvent builds an event from a decoded record, classifying it.
func NewEvent(fields map[string]any) Event {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	typ := stringValue(copied["message_type"])
	if typ == "" {
		typ = stringValue(copied["type"])
	}

	return Event{
		Kind:   classify(typ, copied),
		Type:   typ,
		fields: copied,
	}
}

func classify(typ string, fields map[string]any) Kind {
	switch typ {
	case TypeRetrievalCount:
		return KindRetrievalCount
	case TypeEnsembleResult:
		return KindEnsembleResult
	case TypeResultBatch:
		return KindResultBatch
	case TypeComplete:
		return KindComplete
	case TypeLicense, TypeDataRetention, TypeUIComponent:
		return KindMetadata
	}
	if _, ok := fields["content"]; ok {
		return KindContentFragment
	}
	return KindUnknown
}

// Has reports whether the record carries the named field.
func (e Event) Has(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// Field returns the raw value of a field.
func (e Event) Field(name string) (any, bool) {
	v, ok := e.fields[name]
	return v, ok
}

// Text returns the first non-empty string value among the named fields.
func (e Event) Text(names ...string) string {
	for _, name := range names {
		if s := stringValue(e.fields[name]); s != "" {
			return s
		}
	}
	return ""
}

// Int returns a field as an integer. JSON numbers and numeric strings are accepted.
func (e Event) Int(name string) (int, bool) {
	return intValue(e.fields[name])
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}
