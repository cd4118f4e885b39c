package speech

import (
	"context"
	"log/slog"
)

// Chain implements Speaker by trying multiple speakers in order.
// The first successful speaker wins.
type Chain struct {
	speakers []Speaker
	logger   *slog.Logger
}

// NewChain creates a speaker chain. A nil logger uses slog.Default.
func NewChain(logger *slog.Logger, speakers ...Speaker) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		speakers: speakers,
		logger:   logger.With("component", "speech.chain"),
	}
}

// Speak tries each speaker until one succeeds.
func (c *Chain) Speak(ctx context.Context, text string) error {
	if len(c.speakers) == 0 {
		return ErrProviderUnavailable
	}

	var errs []error
	for i, s := range c.speakers {
		err := s.Speak(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback speaker succeeded", "speaker_index", i, "chars", len(text))
			}
			return nil
		}

		errs = append(errs, err)
		c.logger.Warn("speaker failed, trying next", "speaker_index", i, "error", err)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return &ChainError{Errors: errs}
}

// Say prepares text for voice and speaks it. It never fails: when every
// speaker fails the text is written to the log instead.
func (c *Chain) Say(ctx context.Context, text string) {
	text = Prepare(text)
	if err := c.Speak(ctx, text); err != nil {
		c.logger.Error("speech output failed", "error", err, "text", text)
	}
}

// Speakers returns the list of speakers in the chain.
func (c *Chain) Speakers() []Speaker {
	return c.speakers
}

// Verify Chain implements Speaker at compile time.
var _ Speaker = (*Chain)(nil)
