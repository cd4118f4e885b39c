package speech

import (
	"context"
	"io"
	"sync"
	"time"
)

// Mock implements Speaker and Listener for testing.
// Behaviour can be customized via function fields.
type Mock struct {
	// SpeakFunc is called when Speak is invoked. If nil, returns nil.
	SpeakFunc func(ctx context.Context, text string) error

	// Utterances are returned by Listen in order, then io.EOF.
	Utterances []string

	mu     sync.Mutex
	spoken []string
	next   int
}

// NewMock creates a mock that accepts all speech and hears utterances.
func NewMock(utterances ...string) *Mock {
	return &Mock{Utterances: utterances}
}

// Speak records text and calls SpeakFunc.
func (m *Mock) Speak(ctx context.Context, text string) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	fn := m.SpeakFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return nil
}

// Listen returns the next scripted utterance.
func (m *Mock) Listen(ctx context.Context, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.Utterances) {
		return "", io.EOF
	}
	u := m.Utterances[m.next]
	m.next++
	return u, nil
}

// Spoken returns everything passed to Speak.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.spoken))
	copy(result, m.spoken)
	return result
}

// LastSpoken returns the most recent text, or "" if none.
func (m *Mock) LastSpoken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.spoken) == 0 {
		return ""
	}
	return m.spoken[len(m.spoken)-1]
}

// Reset clears recorded speech and rewinds the utterances.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = nil
	m.next = 0
}

// Verify Mock implements both interfaces at compile time.
var (
	_ Speaker  = (*Mock)(nil)
	_ Listener = (*Mock)(nil)
)
