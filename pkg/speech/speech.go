// Package speech defines the input and output collaborators of the assistant.
//
// A Listener yields recognized utterances; a Speaker voices answers. Audio
// capture and recognition live outside this module, so the provided
// listener reads already-recognized text line by line, and the provided
// speakers print to a console or pipe text to a local TTS command.
//
// Example usage:
//
//	chain := speech.NewChain(logger, speech.NewCommand("say"), speech.NewConsole(os.Stdout))
//	chain.Say(ctx, "Hello! What would you like to know?")
package speech

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// Listener yields recognized utterances.
type Listener interface {
	// Listen blocks until an utterance is recognized, the timeout elapses
	// (ErrNoSpeech) or the input ends (io.EOF).
	Listen(ctx context.Context, timeout time.Duration) (string, error)
}

// Speaker voices text.
type Speaker interface {
	// Speak voices text and returns when playback is done.
	Speak(ctx context.Context, text string) error
}

// Voice limits.
const (
	// MaxSpokenRunes is the longest answer read out in one go.
	MaxSpokenRunes = 500

	// ContinuePrompt ends a truncated answer.
	ContinuePrompt = "... Would you like me to continue?"

	// FallbackMessage replaces an empty answer.
	FallbackMessage = "I'm sorry, I couldn't find an answer to that question."
)

// Prepare shapes text for voice output: an empty answer becomes the fallback
// message and a long one is cut at MaxSpokenRunes with a continue prompt.
func Prepare(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackMessage
	}
	if utf8.RuneCountInString(text) <= MaxSpokenRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:MaxSpokenRunes])) + ContinuePrompt
}
