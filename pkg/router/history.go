package router

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/nlweb-voice/pkg/nlweb"
)

// DefaultHistorySize is how many answered turns are sent as context.
const DefaultHistorySize = 5

// History keeps the most recent answered knowledge turns.
type History struct {
	mu    sync.Mutex
	turns []nlweb.Turn
	max   int
}

// NewHistory creates a history holding at most max turns.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add records an exchange, evicting the oldest turn when full.
func (h *History) Add(question, answer string, at time.Time) nlweb.Turn {
	turn := nlweb.Turn{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Timestamp: at,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	if len(h.turns) > h.max {
		h.turns = append([]nlweb.Turn(nil), h.turns[len(h.turns)-h.max:]...)
	}
	return turn
}

// Recent returns a copy of the stored turns, oldest first.
func (h *History) Recent() []nlweb.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) == 0 {
		return nil
	}
	return append([]nlweb.Turn(nil), h.turns...)
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
