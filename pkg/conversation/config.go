package conversation

import (
	"log/slog"
	"time"
)

// Spoken prompts.
const (
	DefaultAcknowledgement = "Yes, how can I help you?"
	DefaultFarewell        = "You're welcome! Let me know if you need anything else."
	DefaultReprompt        = "I'm here if you need anything else."
)

// DefaultExitPhrases end an active conversation.
var DefaultExitPhrases = []string{"goodbye", "exit", "quit", "bye", "thanks", "thank you", "stop"}

// Config holds conversation settings.
type Config struct {
	// WakeWord activates the assistant when heard while idle.
	WakeWord string

	// ExitPhrases end the conversation. Matched on whole words.
	ExitPhrases []string

	// ResponseTimeout is how long to wait for a question after activation.
	ResponseTimeout time.Duration

	// FollowUpTimeout is how long to wait for a follow-up after an answer.
	FollowUpTimeout time.Duration

	// ListenTimeout bounds one Listen call of the producer.
	ListenTimeout time.Duration

	// QueueSize bounds the utterance queue between producer and consumer.
	QueueSize int

	// Prompts spoken on activation, exit and timeout.
	Acknowledgement string
	Farewell        string
	Reprompt        string

	// StrictInvariants panics on internal contract violations instead of
	// logging them. Enable in tests and development builds.
	StrictInvariants bool

	// Observer receives every state transition. Called without locks held.
	Observer func(Transition)

	// OnExchange receives every answered utterance. Called without locks held.
	OnExchange func(Exchange)

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Option is a functional option for configuring the machine.
type Option func(*Config)

// DefaultConfig returns the default conversation settings.
func DefaultConfig() *Config {
	return &Config{
		WakeWord:        "computer",
		ExitPhrases:     DefaultExitPhrases,
		ResponseTimeout: 10 * time.Second,
		FollowUpTimeout: 15 * time.Second,
		ListenTimeout:   8 * time.Second,
		QueueSize:       16,
		Acknowledgement: DefaultAcknowledgement,
		Farewell:        DefaultFarewell,
		Reprompt:        DefaultReprompt,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithWakeWord sets the activation phrase.
func WithWakeWord(word string) Option {
	return func(c *Config) { c.WakeWord = word }
}

// WithExitPhrases replaces the exit phrases.
func WithExitPhrases(phrases ...string) Option {
	return func(c *Config) { c.ExitPhrases = phrases }
}

// WithTimeouts sets the response and follow-up timeouts.
func WithTimeouts(response, followUp time.Duration) Option {
	return func(c *Config) {
		c.ResponseTimeout = response
		c.FollowUpTimeout = followUp
	}
}

// WithListenTimeout bounds a single Listen call.
func WithListenTimeout(d time.Duration) Option {
	return func(c *Config) { c.ListenTimeout = d }
}

// WithQueueSize sets the utterance queue capacity.
func WithQueueSize(n int) Option {
	return func(c *Config) { c.QueueSize = n }
}

// WithStrictInvariants makes contract violations panic.
func WithStrictInvariants(strict bool) Option {
	return func(c *Config) { c.StrictInvariants = strict }
}

// WithObserver registers a transition observer.
func WithObserver(fn func(Transition)) Option {
	return func(c *Config) { c.Observer = fn }
}

// WithExchangeObserver registers an observer for answered utterances.
func WithExchangeObserver(fn func(Exchange)) Option {
	return func(c *Config) { c.OnExchange = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
