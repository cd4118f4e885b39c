package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/nlweb-voice/pkg/speech"
)

// listenBackoff spaces out retries after a listener error.
const listenBackoff = 250 * time.Millisecond

// Loop connects a Listener to a Machine: a producer goroutine enqueues
// utterances and a consumer goroutine processes them one at a time.
type Loop struct {
	machine  *Machine
	listener speech.Listener
	queue    chan string
	logger   *slog.Logger

	dropped atomic.Int64
}

// NewLoop creates a loop using the machine's queue and listen settings.
func NewLoop(machine *Machine, listener speech.Listener) *Loop {
	size := machine.config.QueueSize
	if size <= 0 {
		size = 1
	}
	return &Loop{
		machine:  machine,
		listener: listener,
		queue:    make(chan string, size),
		logger:   machine.config.Logger.With("component", "conversation.loop"),
	}
}

// Dropped returns how many utterances were discarded because the queue was full.
func (l *Loop) Dropped() int64 {
	return l.dropped.Load()
}

// Run blocks until ctx is cancelled or the listener's input ends, then
// shuts the machine down. Queued utterances are still processed after the
// input ends, but not after cancellation.
func (l *Loop) Run(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		readErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(l.queue)
		readErr = l.produce(ctx)
	}()
	go func() {
		defer wg.Done()
		l.consume(ctx)
	}()

	wg.Wait()
	l.machine.Shutdown()
	return readErr
}

// produce listens and enqueues. It never blocks on the queue.
func (l *Loop) produce(ctx context.Context) error {
	timeout := l.machine.config.ListenTimeout
	for {
		text, err := l.listener.Listen(ctx, timeout)
		switch {
		case err == nil:
			l.enqueue(text)
		case errors.Is(err, speech.ErrNoSpeech):
		case errors.Is(err, io.EOF):
			l.logger.Info("input ended")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			l.logger.Warn("listen failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(listenBackoff):
			}
		}
	}
}

func (l *Loop) enqueue(text string) {
	select {
	case l.queue <- text:
	default:
		l.dropped.Add(1)
		l.logger.Warn("utterance queue full, dropping", "text", text, "capacity", cap(l.queue))
	}
}

// consume processes utterances one at a time.
func (l *Loop) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-l.queue:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			l.machine.OnUtterance(ctx, text)
		}
	}
}
