package speech

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// LineListener treats each non-empty input line as one recognized utterance.
// It is the stand-in for a recognizer when running from a terminal or a pipe.
type LineListener struct {
	once      sync.Once
	closeOnce sync.Once
	lines     chan string
	done      chan struct{}
	exited    chan struct{}
	err       error
	r         io.Reader
}

// NewLineListener creates a listener reading from r.
func NewLineListener(r io.Reader) *LineListener {
	return &LineListener{
		r:      r,
		lines:  make(chan string),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// start launches the reader goroutine on first use. It exits at end of input
// or, after Close, as soon as it would hand over a line nobody will take.
func (l *LineListener) start() {
	l.once.Do(func() {
		go func() {
			defer close(l.exited)
			scanner := bufio.NewScanner(l.r)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				select {
				case l.lines <- line:
				case <-l.done:
					return
				}
			}
			l.err = scanner.Err()
			close(l.lines)
		}()
	})
}

// Close stops the listener. Later Listen calls return io.EOF. A read already
// blocked on the underlying reader ends when that reader does.
func (l *LineListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// Listen implements Listener.
func (l *LineListener) Listen(ctx context.Context, timeout time.Duration) (string, error) {
	select {
	case <-l.done:
		return "", io.EOF
	default:
	}
	l.start()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case line, ok := <-l.lines:
		if !ok {
			if l.err != nil {
				return "", l.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-expired:
		return "", ErrNoSpeech
	case <-l.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
