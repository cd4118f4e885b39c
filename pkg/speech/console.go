package speech

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Console prints answers as "Assistant: <text>".
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console speaker writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Speak implements Speaker.
func (c *Console) Speak(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "Assistant: %s\n", text)
	return err
}
